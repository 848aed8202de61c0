package types

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  A Castle At Dawn  ", "a castle at dawn"},
		{"already normal", "already normal"},
		{"\tTabs And Newlines\n", "tabs and newlines"},
		{"", ""},
		{"   ", ""},
		{"MiXeD Internal  Spacing", "mixed internal  spacing"},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHashTextIgnoresCaseAndPadding(t *testing.T) {
	base := HashText("a castle at dawn")
	variants := []string{
		"A Castle At Dawn",
		"  a castle at dawn  ",
		"\tA CASTLE AT DAWN\n",
	}
	for _, v := range variants {
		if HashText(v) != base {
			t.Errorf("HashText(%q) differs from normalized form", v)
		}
	}
	if HashText("a castle at dusk") == base {
		t.Error("distinct texts produced the same hash")
	}
	if len(base) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(base))
	}
}

func TestHashTextIdempotentOverNormalize(t *testing.T) {
	for _, text := range []string{"Hello World", "  padded  ", "", "üñïçödé"} {
		if HashText(text) != HashText(NormalizeText(text)) {
			t.Errorf("HashText(%q) != HashText(NormalizeText(%q))", text, text)
		}
	}
}

func TestPromptValidate(t *testing.T) {
	valid := &Prompt{Text: "a fine prompt", Rating: intp(3)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid prompt rejected: %v", err)
	}

	cases := []struct {
		name   string
		prompt *Prompt
		field  string
	}{
		{"empty text", &Prompt{Text: ""}, "text"},
		{"whitespace text", &Prompt{Text: "   \t\n"}, "text"},
		{"too long", &Prompt{Text: strings.Repeat("x", MaxPromptLength+1)}, "text"},
		{"rating too low", &Prompt{Text: "ok", Rating: intp(0)}, "rating"},
		{"rating too high", &Prompt{Text: "ok", Rating: intp(6)}, "rating"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.prompt.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	boundary := &Prompt{Text: strings.Repeat("x", MaxPromptLength)}
	if err := boundary.Validate(); err != nil {
		t.Errorf("text at the length limit rejected: %v", err)
	}
}

func TestUpdatePromptParams(t *testing.T) {
	if !(UpdatePromptParams{}).IsZero() {
		t.Error("zero-value params should report IsZero")
	}
	tags := []string{"a"}
	if (UpdatePromptParams{Tags: &tags}).IsZero() {
		t.Error("params with tags should not report IsZero")
	}

	empty := "  "
	if err := (UpdatePromptParams{Text: &empty}).Validate(); err == nil {
		t.Error("update to blank text accepted")
	}
	bad := 9
	if err := (UpdatePromptParams{Rating: &bad}).Validate(); err == nil {
		t.Error("out-of-range rating accepted")
	}
	good := "new text"
	rating := 5
	if err := (UpdatePromptParams{Text: &good, Rating: &rating}).Validate(); err != nil {
		t.Errorf("valid update rejected: %v", err)
	}
}

func intp(v int) *int { return &v }
