package domain

import "time"

// SessionPayload is the identity carried inside a signed session token.
// There is no server-side session record.
type SessionPayload struct {
	SubjectID string
	Username  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PayloadFor builds the session payload for a user. Role defaults to RoleUser.
func PayloadFor(u User) SessionPayload {
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	return SessionPayload{
		SubjectID: u.ID,
		Username:  u.Username,
		Role:      role,
	}
}
