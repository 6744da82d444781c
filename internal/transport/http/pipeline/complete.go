package pipeline

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ulut0002/base-backend/internal/core/issue"
)

const (
	authenticatedMessage = "Authentication successful"
	loggedOutMessage     = "Logged out"
	okMessage            = "OK"
)

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	Path   string
	Secure bool
}

func (c Cookie) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// Session is what a handler stores under KeySession after signing a user in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      any
}

// SuccessBody is the envelope of every successful response.
type SuccessBody struct {
	Message  string        `json:"message"`
	User     any           `json:"user,omitempty"`
	Data     any           `json:"data,omitempty"`
	Warnings []issue.Issue `json:"warnings,omitempty"`
	Infos    []issue.Issue `json:"infos,omitempty"`
}

func successBody(pc *Context, fallback string) SuccessBody {
	grouped := pc.Issues.All()
	body := SuccessBody{
		Message:  fallback,
		Warnings: grouped.Warnings,
		Infos:    grouped.Infos,
	}
	if msg, ok := pc.Get(KeyMessage); ok {
		if s, ok := msg.(string); ok && s != "" {
			body.Message = s
		}
	}
	if data, ok := pc.Get(KeyBody); ok {
		body.Data = data
	}
	return body
}

// CompleteWithSession sets the session cookie and answers with status.
// A missing session is reported as an infrastructure failure.
func CompleteWithSession(cookie Cookie, status int) Complete {
	return func(pc *Context) {
		if pc.Issues.HasErrors() {
			WriteFailure(pc.Gin, pc.Issues)
			return
		}

		raw, _ := pc.Get(KeySession)
		session, ok := raw.(Session)
		if !ok || session.Token == "" {
			pc.Issues.AddError("", issue.CodeAPIError, nil)
			WriteFailure(pc.Gin, pc.Issues)
			return
		}

		maxAge := int(time.Until(session.ExpiresAt).Seconds())
		if maxAge < 0 {
			maxAge = 0
		}

		pc.Gin.SetSameSite(http.SameSiteStrictMode)
		pc.Gin.SetCookie(cookie.Name, session.Token, maxAge, cookie.path(), "", cookie.Secure, true)

		body := successBody(pc, authenticatedMessage)
		body.User = session.User
		pc.Gin.JSON(status, body)
	}
}

// CompleteJSON answers with status and the value stored under KeyBody.
func CompleteJSON(status int) Complete {
	return func(pc *Context) {
		if pc.Issues.HasErrors() {
			WriteFailure(pc.Gin, pc.Issues)
			return
		}
		pc.Gin.JSON(status, successBody(pc, okMessage))
	}
}

// CompleteClearSession expires the session cookie.
func CompleteClearSession(cookie Cookie) Complete {
	return func(pc *Context) {
		if pc.Issues.HasErrors() {
			WriteFailure(pc.Gin, pc.Issues)
			return
		}
		pc.Gin.SetSameSite(http.SameSiteStrictMode)
		pc.Gin.SetCookie(cookie.Name, "", -1, cookie.path(), "", cookie.Secure, true)
		pc.Gin.JSON(http.StatusOK, successBody(pc, loggedOutMessage))
	}
}

// Decode binds the JSON body into a fresh T stored under KeyRequest. A malformed body
// records BAD_REQUEST; an empty one leaves the zero value so field checks report what is missing.
func Decode[T any]() Stage {
	return func(pc *Context) {
		req := new(T)
		if err := pc.Gin.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
			pc.Issues.AddError("body", issue.CodeBadRequest, nil)
		}
		pc.Set(KeyRequest, req)
	}
}

// Payload returns the request decoded by Decode, or a zero value.
func Payload[T any](pc *Context) *T {
	if v, ok := pc.Get(KeyRequest); ok {
		if req, ok := v.(*T); ok {
			return req
		}
	}
	return new(T)
}

// WriteError is a convenience for middleware that must reject before a route runs.
func WriteError(gc *gin.Context, field string, code issue.Code, params map[string]any) {
	issues := issue.NewCollector()
	issues.AddError(field, code, params)
	WriteFailure(gc, issues)
}
