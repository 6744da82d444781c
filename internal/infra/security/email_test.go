package security

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Alice@Example.COM ", "alice@example.com"},
		{"a.b+x@gmail.com", "ab@gmail.com"},
		{"ab@gmail.com", "ab@gmail.com"},
		{"A.B@GoogleMail.com", "ab@gmail.com"},
		{"john+news@outlook.com", "john@outlook.com"},
		{"john.doe+news@hotmail.com", "john.doe@hotmail.com"},
		{"me+tag@fastmail.com", "me@fastmail.com"},
		{"user-promo@yahoo.com", "user@yahoo.com"},
		{"first.last+x@company.io", "first.last+x@company.io"},
		{"+only@gmail.com", "+only@gmail.com"},
		{"not-an-email", "not-an-email"},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+x@gmail.com", "x@sub.domain.org"}
	for _, e := range valid {
		if !ValidEmail(e) {
			t.Fatalf("expected %q to be valid", e)
		}
	}

	invalid := []string{"", "alice", "alice@", "@example.com", "alice@localhost", "Alice <alice@example.com>", "a@b."}
	for _, e := range invalid {
		if ValidEmail(e) {
			t.Fatalf("expected %q to be invalid", e)
		}
	}
}
