package sanitize

import (
	"strings"
	"testing"
)

func TestStringStripsInjectionPatterns(t *testing.T) {
	cases := map[string]string{
		"  plain name  ":                  "plain name",
		"<script>alert(1)</script>":       "scriptalert(1)/script",
		"JaVaScRiPt:alert(1)":             "alert(1)",
		`<img src=x onerror=alert(1)>`:    "img src=x alert(1)",
		"a < b > c":                       "a  b  c",
		"onclick=doThing() onload=boot()": "doThing() boot()",
	}
	for input, expected := range cases {
		if got := String(input); got != expected {
			t.Fatalf("String(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestStringNeverContainsAngleBracketsAndIsBounded(t *testing.T) {
	inputs := []string{
		"",
		"<>",
		strings.Repeat("<a>", 2000),
		strings.Repeat("x", 5000),
		"javascript:" + strings.Repeat("y", 3000),
	}
	for _, input := range inputs {
		got := String(input)
		if strings.ContainsAny(got, "<>") {
			t.Fatalf("String(%q) kept angle brackets: %q", input, got)
		}
		if n := len([]rune(got)); n > MaxStringLen {
			t.Fatalf("String output too long: %d runes", n)
		}
	}
}

func TestEmailNormalization(t *testing.T) {
	if got := Email("  Alice.Smith@Example.COM "); got != "alice.smith@example.com" {
		t.Fatalf("unexpected email: %q", got)
	}
	long := strings.Repeat("a", 300) + "@example.com"
	if n := len(Email(long)); n != MaxEmailLen {
		t.Fatalf("expected truncation to %d, got %d", MaxEmailLen, n)
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "teacher@school.example.edu", "x.y+z@d.io"}
	for _, s := range valid {
		if !ValidEmail(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	invalid := []string{"", "plain", "a@b", "a b@c.de", "@d.io", "a@", strings.Repeat("a", 250) + "@b.com"}
	for _, s := range invalid {
		if ValidEmail(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestCheckPasswordAccepts(t *testing.T) {
	check := CheckPassword("Passw0rd!")
	if !check.Valid {
		t.Fatalf("expected valid password, got errors: %v", check.Errors)
	}
	if len(check.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", check.Errors)
	}
}

func TestCheckPasswordShortAlwaysHasLengthError(t *testing.T) {
	for _, p := range []string{"", "a", "Ab1!", "Sh0rt!%"} {
		check := CheckPassword(p)
		if check.Valid {
			t.Fatalf("expected %q to be invalid", p)
		}
		found := false
		for _, msg := range check.Errors {
			if strings.Contains(msg, "at least 8") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected length error for %q, got %v", p, check.Errors)
		}
	}
}

func TestCheckPasswordReportsAllViolations(t *testing.T) {
	check := CheckPassword("abc")
	// Short, no uppercase, no digit, no special: four rules at once.
	if len(check.Errors) != 4 {
		t.Fatalf("expected 4 violations, got %v", check.Errors)
	}
}

func TestCheckPasswordDeniesCommonPasswords(t *testing.T) {
	for _, p := range []string{"password", "PASSWORD", "Monkey", "letmein"} {
		check := CheckPassword(p)
		if check.Valid {
			t.Fatalf("expected common password %q to be rejected", p)
		}
		found := false
		for _, msg := range check.Errors {
			if strings.Contains(msg, "too common") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected deny-list error for %q, got %v", p, check.Errors)
		}
	}
}

func TestCheckPasswordCountsRunesNotBytes(t *testing.T) {
	// 6 characters but 10 bytes; byte counting would let it pass.
	check := CheckPassword("Aa1!日日")
	if check.Valid {
		t.Fatalf("expected 6-character password to be rejected")
	}
	found := false
	for _, msg := range check.Errors {
		if strings.Contains(msg, "at least 8") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected length error, got %v", check.Errors)
	}

	// 128 characters of multibyte text stays within the maximum even though
	// it is far more than 128 bytes.
	long := CheckPassword("Aa1!" + strings.Repeat("日", 124))
	if !long.Valid {
		t.Fatalf("expected 128-character password to be accepted, got %v", long.Errors)
	}
}

func TestCheckPasswordLongPassword(t *testing.T) {
	check := CheckPassword("Aa1!" + strings.Repeat("x", 130))
	if check.Valid {
		t.Fatalf("expected over-length password to be rejected")
	}
	found := false
	for _, msg := range check.Errors {
		if strings.Contains(msg, "at most 128") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected max-length error, got %v", check.Errors)
	}
}
