package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// CodeMail carries what a recovery email shows the user. Link is empty when
// the raw link token is no longer available, e.g. when an active code is resent.
type CodeMail struct {
	To        string
	Username  string
	Code      string
	Link      string
	ExpiresIn time.Duration
}

type templatePair struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var (
	passwordResetTemplates = templatePair{
		subject: "Reset your password",
		text: texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hello {{.Username}},

Your password reset code is {{.Code}}. It expires in {{.Minutes}} minutes.
{{if .Link}}
You can also reset your password here: {{.Link}}
{{end}}
If you did not request a reset, you can ignore this email.
`)),
		html: htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<p>Hello {{.Username}},</p>
<p>Your password reset code is <strong>{{.Code}}</strong>. It expires in {{.Minutes}} minutes.</p>
{{if .Link}}<p><a href="{{.Link}}">Reset your password</a></p>{{end}}
<p>If you did not request a reset, you can ignore this email.</p>
`)),
	}

	verificationTemplates = templatePair{
		subject: "Verify your email address",
		text: texttemplate.Must(texttemplate.New("verify.txt").Parse(`Hello {{.Username}},

Your verification code is {{.Code}}. It expires in {{.Minutes}} minutes.
{{if .Link}}
Verify your account here: {{.Link}}
{{end}}`)),
		html: htmltemplate.Must(htmltemplate.New("verify.html").Parse(`<p>Hello {{.Username}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{.Minutes}} minutes.</p>
{{if .Link}}<p><a href="{{.Link}}">Verify your account</a></p>{{end}}
`)),
	}
)

// PasswordResetMessage renders the reset email from the no-reply profile.
func PasswordResetMessage(m CodeMail) (domain.MailMessage, error) {
	return render(passwordResetTemplates, m)
}

// VerificationMessage renders the email verification email from the no-reply profile.
func VerificationMessage(m CodeMail) (domain.MailMessage, error) {
	return render(verificationTemplates, m)
}

// BuildLink appends the query parameters to base + path.
func BuildLink(base, path string, params map[string]string) string {
	if base == "" {
		return ""
	}
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	link := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if encoded := q.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}

func render(t templatePair, m CodeMail) (domain.MailMessage, error) {
	minutes := int(m.ExpiresIn / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	name := m.Username
	if name == "" {
		name = "there"
	}
	data := struct {
		Username string
		Code     string
		Link     string
		Minutes  int
	}{name, m.Code, m.Link, minutes}

	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return domain.MailMessage{}, fmt.Errorf("render text body: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return domain.MailMessage{}, fmt.Errorf("render html body: %w", err)
	}

	return domain.MailMessage{
		Profile: domain.MailProfileNoReply,
		To:      m.To,
		Subject: t.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
