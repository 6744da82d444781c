package domain

// Well-known mail profile keys.
const (
	MailProfileNoReply = "no-reply"
	MailProfileSupport = "support"
)

// MailProfile is a named sender identity.
type MailProfile struct {
	Name    string `mapstructure:"name" json:"name"`
	Address string `mapstructure:"address" json:"address"`
}

// MailMessage is a rendered email ready for dispatch.
type MailMessage struct {
	Profile string
	To      string
	Subject string
	Text    string
	HTML    string
}
