package template

import "testing"

func TestCompileApplyIdentityNoPlaceholders(t *testing.T) {
	s := "Olá, mundo!"
	got := Apply(Compile(s), map[string]string{"x": "y"})
	if got != s {
		t.Fatalf("got %q, want %q", got, s)
	}
}

func TestApplyPassThroughMissingValue(t *testing.T) {
	s := "Hi {name}"
	got := Apply(Compile(s), map[string]string{})
	if got != s {
		t.Fatalf("got %q, want %q", got, s)
	}
}

func TestApplySubstitutes(t *testing.T) {
	s := "Olá, {name}!"
	got := Apply(Compile(s), map[string]string{"name": "Ana"})
	if got != "Olá, Ana!" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyMultiplePlaceholders(t *testing.T) {
	s := "{greeting}, {name}! You have {count} items."
	got := Apply(Compile(s), map[string]string{"greeting": "Hi", "name": "Bob", "count": "3"})
	if got != "Hi, Bob! You have 3 items." {
		t.Fatalf("got %q", got)
	}
}

func TestValidateUnbalancedBraces(t *testing.T) {
	cases := []string{"{unterminated", "stray}", "{{nested}}"}
	for _, c := range cases {
		if err := Validate(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestValidateAllowsLangDirective(t *testing.T) {
	if err := Validate("{lang:pt_br}Olá"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvalidChars(t *testing.T) {
	if err := Validate("{na-me}"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHasPlaceholders(t *testing.T) {
	if !HasPlaceholders("Hi {name}") {
		t.Fatal("expected true")
	}
	if HasPlaceholders("Hi %name%") {
		t.Fatal("expected false: %name% must be left untouched")
	}
}

func TestExtractKeys(t *testing.T) {
	keys := ExtractKeys("{a} and {b} but not {lang:en_us}")
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("got %v", keys)
	}
}

func TestStripLangDirective(t *testing.T) {
	clean, lang, ok := StripLangDirective("{lang:en_us}Hello {name}")
	if !ok || lang != "en_us" || clean != "Hello {name}" {
		t.Fatalf("got clean=%q lang=%q ok=%v", clean, lang, ok)
	}
	_, _, ok = StripLangDirective("no directive here")
	if ok {
		t.Fatal("expected no directive found")
	}
}

func TestCompileInvariant(t *testing.T) {
	ct := Compile("{a}-{b}-{c}")
	if len(ct.StaticParts) != len(ct.PlaceholderKeys)+1 {
		t.Fatalf("invariant violated: parts=%d keys=%d", len(ct.StaticParts), len(ct.PlaceholderKeys))
	}
}
