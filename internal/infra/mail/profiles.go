package mail

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

var (
	// ErrUnknownProfile is returned when a message names a profile that is not configured.
	ErrUnknownProfile = errors.New("mail: unknown sender profile")
	// ErrNoRecipient is returned for messages without a To address.
	ErrNoRecipient = errors.New("mail: recipient is empty")
)

// Profiles maps profile keys to sender identities. Keys match with either
// dashes or underscores, so "no-reply" and "no_reply" are the same profile.
type Profiles map[string]domain.MailProfile

// Resolve returns the sender identity for key.
func (p Profiles) Resolve(key string) (domain.MailProfile, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, candidate := range []string{k, strings.ReplaceAll(k, "_", "-"), strings.ReplaceAll(k, "-", "_")} {
		if profile, ok := p[candidate]; ok && profile.Address != "" {
			return profile, nil
		}
	}
	return domain.MailProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, key)
}

func fromHeader(profile domain.MailProfile) string {
	addr := mail.Address{Name: profile.Name, Address: profile.Address}
	return addr.String()
}
