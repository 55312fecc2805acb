package plural

import "testing"

func TestSelectEnglishOneVsOther(t *testing.T) {
	cases := []struct {
		lang  string
		count int
		want  Category
	}{
		{"en_us", 1, One},
		{"en_us", 5, Other},
		{"en_us", 0, Other},
		{"pt_br", 1, One},
		{"pt_br", 2, Other},
		{"es_es", 1, One},
	}
	for _, c := range cases {
		got, err := Select(c.lang, c.count)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Fatalf("Select(%q, %d) = %v, want %v", c.lang, c.count, got, c.want)
		}
	}
}

func TestSelectUnknownLanguageFallsBackToEnglish(t *testing.T) {
	got, err := Select("xx_yy", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != One {
		t.Fatalf("got %v, want ONE", got)
	}
}

func TestSelectRejectsNegativeCount(t *testing.T) {
	if _, err := Select("en_us", -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestRegisterCustomRule(t *testing.T) {
	Register("xx", func(count int) Category {
		if count == 0 {
			return Zero
		}
		return Other
	})
	got, err := Select("xx_yy", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Zero {
		t.Fatalf("got %v, want ZERO", got)
	}
}
