package issue

import "net/http"

// Severity ranks an Issue. Only SeverityError blocks a request.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category groups codes by who can fix them.
type Category string

const (
	CategoryValidation     Category = "ValidationError"
	CategoryBusinessRule   Category = "BusinessRuleError"
	CategoryConfiguration  Category = "ConfigurationError"
	CategoryInfrastructure Category = "InfrastructureError"
)

// Code identifies a specific finding.
type Code string

const (
	CodeAPIError     Code = "API_ERROR"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTooMany      Code = "TOO_MANY_REQUESTS"

	CodeExistingUser        Code = "EXISTING_USER_FOUND"
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeUserMissingPassword Code = "USER_MISSING_PASSWORD"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodePasswordNotMatching Code = "PASSWORD_NOT_MATCHING"
	CodeInvalidSession      Code = "INVALID_SESSION"

	CodeInvalidConfiguration    Code = "INVALID_CONFIGURATION"
	CodeMissingSecurityKey      Code = "MISSING_SECURITY_KEY"
	CodeSecurityKeyTooShort     Code = "SECURITY_KEY_TOO_SHORT"
	CodeMissingCookieExpiration Code = "MISSING_COOKIE_EXPIRATION"

	CodeUsernameTooShort            Code = "USERNAME_TOO_SHORT"
	CodeUsernameTooLong             Code = "USERNAME_TOO_LONG"
	CodeMissingUsername             Code = "MISSING_USERNAME"
	CodeMissingEmail                Code = "MISSING_EMAIL"
	CodeInvalidEmail                Code = "INVALID_EMAIL"
	CodeMissingPassword             Code = "MISSING_PASSWORD"
	CodeMissingPasswordConfirmation Code = "MISSING_PASSWORD_CONFIRMATION"
	CodePasswordTooShort            Code = "PASSWORD_TOO_SHORT"
	CodePasswordMissingUppercase    Code = "PASSWORD_MISSING_UPPERCASE"
	CodePasswordMissingLowercase    Code = "PASSWORD_MISSING_LOWERCASE"
	CodePasswordMissingDigit        Code = "PASSWORD_MISSING_DIGIT"
	CodePasswordMissingSpecial      Code = "PASSWORD_MISSING_SPECIAL"
	CodePasswordTooWeak             Code = "PASSWORD_TOO_WEAK"
	CodeMissingToken                Code = "MISSING_TOKEN"
	CodeMissingHash                 Code = "MISSING_HASH"
	CodeMissingCode                 Code = "MISSING_CODE"
	CodeMissingUserID               Code = "MISSING_USER_ID"

	CodeVerificationNotFound    Code = "VERIFICATION_CODE_NOT_FOUND"
	CodeVerificationExpired     Code = "VERIFICATION_CODE_EXPIRED"
	CodeUserAlreadyVerified     Code = "USER_ALREADY_VERIFIED"
	CodeVerificationNotRequired Code = "VERIFICATION_NOT_REQUIRED"
	CodeMailDeliveryFailed      Code = "MAIL_DELIVERY_FAILED"
)

type codeInfo struct {
	category Category
	status   int
	message  string
}

var catalogue = map[Code]codeInfo{
	CodeAPIError:     {CategoryInfrastructure, http.StatusInternalServerError, "The request could not be completed."},
	CodeBadRequest:   {CategoryValidation, http.StatusBadRequest, "The request is malformed."},
	CodeUnauthorized: {CategoryBusinessRule, http.StatusUnauthorized, "Authentication is required."},
	CodeForbidden:    {CategoryBusinessRule, http.StatusForbidden, "You are not allowed to perform this action."},
	CodeNotFound:     {CategoryBusinessRule, http.StatusNotFound, "The requested resource was not found."},
	CodeTooMany:      {CategoryBusinessRule, http.StatusTooManyRequests, "Too many requests. Try again later."},

	CodeExistingUser:        {CategoryBusinessRule, http.StatusConflict, "A user with these details already exists."},
	CodeUserNotFound:        {CategoryBusinessRule, http.StatusNotFound, "User not found."},
	CodeUserMissingPassword: {CategoryBusinessRule, http.StatusUnauthorized, "This account has no password set."},
	CodeInvalidCredentials:  {CategoryBusinessRule, http.StatusUnauthorized, "Invalid credentials."},
	CodePasswordNotMatching: {CategoryValidation, http.StatusBadRequest, "Passwords do not match."},
	CodeInvalidSession:      {CategoryBusinessRule, http.StatusUnauthorized, "The session is invalid or has expired."},

	CodeInvalidConfiguration:    {CategoryConfiguration, http.StatusInternalServerError, "The service is misconfigured."},
	CodeMissingSecurityKey:      {CategoryConfiguration, http.StatusInternalServerError, "The session signing key is not configured."},
	CodeSecurityKeyTooShort:     {CategoryConfiguration, http.StatusInternalServerError, "The session signing key is shorter than recommended."},
	CodeMissingCookieExpiration: {CategoryConfiguration, http.StatusInternalServerError, "The session lifetime is not configured."},

	CodeUsernameTooShort:            {CategoryValidation, http.StatusBadRequest, "Username is too short."},
	CodeUsernameTooLong:             {CategoryValidation, http.StatusBadRequest, "Username is too long."},
	CodeMissingUsername:             {CategoryValidation, http.StatusBadRequest, "Username is required."},
	CodeMissingEmail:                {CategoryValidation, http.StatusBadRequest, "Email is required."},
	CodeInvalidEmail:                {CategoryValidation, http.StatusBadRequest, "Email address is not valid."},
	CodeMissingPassword:             {CategoryValidation, http.StatusBadRequest, "Password is required."},
	CodeMissingPasswordConfirmation: {CategoryValidation, http.StatusBadRequest, "Password confirmation is required."},
	CodePasswordTooShort:            {CategoryValidation, http.StatusBadRequest, "Password is too short."},
	CodePasswordMissingUppercase:    {CategoryValidation, http.StatusBadRequest, "Password must contain an uppercase letter."},
	CodePasswordMissingLowercase:    {CategoryValidation, http.StatusBadRequest, "Password must contain a lowercase letter."},
	CodePasswordMissingDigit:        {CategoryValidation, http.StatusBadRequest, "Password must contain a digit."},
	CodePasswordMissingSpecial:      {CategoryValidation, http.StatusBadRequest, "Password must contain a special character."},
	CodePasswordTooWeak:             {CategoryValidation, http.StatusBadRequest, "Password is too easy to guess."},
	CodeMissingToken:                {CategoryValidation, http.StatusBadRequest, "Token is required."},
	CodeMissingHash:                 {CategoryValidation, http.StatusBadRequest, "Hash is required."},
	CodeMissingCode:                 {CategoryValidation, http.StatusBadRequest, "Code is required."},
	CodeMissingUserID:               {CategoryValidation, http.StatusBadRequest, "User id is required."},

	CodeVerificationNotFound:    {CategoryBusinessRule, http.StatusNotFound, "The verification code is invalid or has already been used."},
	CodeVerificationExpired:     {CategoryBusinessRule, http.StatusGone, "The verification code has expired."},
	CodeUserAlreadyVerified:     {CategoryBusinessRule, http.StatusConflict, "The account is already verified."},
	CodeVerificationNotRequired: {CategoryBusinessRule, http.StatusConflict, "This account does not require verification."},
	CodeMailDeliveryFailed:      {CategoryInfrastructure, http.StatusInternalServerError, "The email could not be sent."},
}

// Category reports the taxonomy bucket of the code. Unknown codes are infrastructure errors.
func (c Code) Category() Category {
	if info, ok := catalogue[c]; ok {
		return info.category
	}
	return CategoryInfrastructure
}

// HTTPStatus reports the transport status used when the code is the first error of a response.
func (c Code) HTTPStatus() int {
	if info, ok := catalogue[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the English text for the code.
func (c Code) DefaultMessage() string {
	if info, ok := catalogue[c]; ok {
		return info.message
	}
	return string(c)
}

// Issue is a single validation or business-rule finding.
type Issue struct {
	Severity Severity       `json:"type"`
	Code     Code           `json:"code"`
	Field    string         `json:"field,omitempty"`
	Message  string         `json:"message"`
	Params   map[string]any `json:"params,omitempty"`
}

// New builds an Issue, copying params so the caller's map can be reused.
func New(severity Severity, field string, code Code, params map[string]any) Issue {
	var copied map[string]any
	if len(params) > 0 {
		copied = make(map[string]any, len(params))
		for k, v := range params {
			copied[k] = v
		}
	}
	return Issue{
		Severity: severity,
		Code:     code,
		Field:    field,
		Message:  code.DefaultMessage(),
		Params:   copied,
	}
}

// WithMessage returns a copy carrying a caller-supplied message.
func (i Issue) WithMessage(message string) Issue {
	if message != "" {
		i.Message = message
	}
	return i
}

// Category is shorthand for i.Code.Category().
func (i Issue) Category() Category {
	return i.Code.Category()
}

// Param returns the named parameter, if present.
func (i Issue) Param(key string) (any, bool) {
	v, ok := i.Params[key]
	return v, ok
}
