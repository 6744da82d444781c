package security

import (
	"net/mail"
	"strings"
)

// NormalizeEmail canonicalises an address for duplicate detection. Provider
// aliases collapse to one mailbox: gmail ignores dots and "+tag", outlook and
// fastmail ignore "+tag", yahoo ignores "-tag". Anything that does not look
// like an address is returned lowercased and trimmed.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return email
	}

	local, host := email[:at], email[at+1:]

	switch host {
	case "gmail.com", "googlemail.com":
		local = cutAt(local, "+")
		local = strings.ReplaceAll(local, ".", "")
		host = "gmail.com"
	case "outlook.com", "hotmail.com", "live.com":
		local = cutAt(local, "+")
	case "fastmail.com", "fastmail.fm":
		local = cutAt(local, "+")
	case "yahoo.com", "ymail.com":
		local = cutAt(local, "-")
	}

	if local == "" {
		return email
	}
	return local + "@" + host
}

func cutAt(s, sep string) string {
	before, _, _ := strings.Cut(s, sep)
	return before
}

// ValidEmail reports whether email is a bare addr-spec with a dotted domain.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
