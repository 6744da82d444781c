package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/transport/http/middleware"
	"github.com/ulut0002/base-backend/internal/transport/http/pipeline"
	"github.com/ulut0002/base-backend/internal/usecase"
)

type registerRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// Username may hold an email address; Email is accepted for clients that send it separately.
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword    string  `json:"currentPassword"`
	NewPassword        string  `json:"newPassword"`
	NewPasswordConfirm *string `json:"newPasswordConfirm"`
}

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	cookie pipeline.Cookie
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, cookie pipeline.Cookie) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

// RegisterRoutes binds the auth routes. session guards authenticated routes; loginLimits run ahead of login.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, session gin.HandlerFunc, loginLimits ...gin.HandlerFunc) {
	r.POST("/register", h.Register())
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginLimits...), h.Login())...)
	r.POST("/logout", h.Logout())
	r.POST("/refresh-token", h.Refresh())
	r.POST("/change-password", session, h.ChangePassword())
	r.GET("/me", session, h.Me())
	r.GET("/status", session, h.Status())
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[registerRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[registerRequest](pc)
			res := h.auth.Register(pc.Gin.Request.Context(), usecase.RegisterInput{
				Username:        req.Username,
				Email:           req.Email,
				Password:        req.Password,
				PasswordConfirm: req.PasswordConfirm,
			})
			h.storeSession(pc, res)
		},
		Complete: pipeline.CompleteWithSession(h.cookie, http.StatusCreated),
	}.HandlerFunc()
}

// Login authenticates by username or email.
func (h *AuthHandler) Login() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[loginRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[loginRequest](pc)
			identity := req.Username
			if identity == "" {
				identity = req.Email
			}
			res := h.auth.Login(pc.Gin.Request.Context(), usecase.LoginInput{
				Identity: identity,
				Password: req.Password,
			})
			h.storeSession(pc, res)
		},
		Complete: pipeline.CompleteWithSession(h.cookie, http.StatusOK),
	}.HandlerFunc()
}

// Logout expires the session cookie. Tokens are stateless, so nothing is revoked server side.
func (h *AuthHandler) Logout() gin.HandlerFunc {
	return pipeline.Route{
		Complete: pipeline.CompleteClearSession(h.cookie),
	}.HandlerFunc()
}

// Refresh exchanges a valid session, from the cookie or a bearer header, for a new one.
func (h *AuthHandler) Refresh() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{func(pc *pipeline.Context) {
			if middleware.SessionToken(pc.Gin, h.cookie.Name) == "" {
				pc.Issues.AddError("token", issue.CodeUnauthorized, nil)
			}
		}},
		Handler: func(pc *pipeline.Context) {
			token := middleware.SessionToken(pc.Gin, h.cookie.Name)
			h.storeSession(pc, h.auth.Refresh(pc.Gin.Request.Context(), token))
		},
		Complete: pipeline.CompleteWithSession(h.cookie, http.StatusOK),
	}.HandlerFunc()
}

// ChangePassword rotates the signed-in user's password.
func (h *AuthHandler) ChangePassword() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[changePasswordRequest](), requireUser},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[changePasswordRequest](pc)
			payload, _ := middleware.SessionFrom(pc.Gin)
			pc.Issues.Merge(h.auth.ChangePassword(pc.Gin.Request.Context(), usecase.ChangePasswordInput{
				UserID:             payload.SubjectID,
				CurrentPassword:    req.CurrentPassword,
				NewPassword:        req.NewPassword,
				NewPasswordConfirm: req.NewPasswordConfirm,
			}))
			pc.Set(pipeline.KeyMessage, "Password changed successfully")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// Me returns the signed-in user.
func (h *AuthHandler) Me() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{requireUser},
		Handler: func(pc *pipeline.Context) {
			if user := h.currentUser(pc); user != nil {
				pc.Set(pipeline.KeyBody, user)
			}
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// Status confirms the session is valid.
func (h *AuthHandler) Status() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{requireUser},
		Handler: func(pc *pipeline.Context) {
			if user := h.currentUser(pc); user != nil {
				pc.Set(pipeline.KeyBody, StatusView{Authenticated: true, User: user})
			}
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

func (h *AuthHandler) currentUser(pc *pipeline.Context) *UserView {
	payload, _ := middleware.SessionFrom(pc.Gin)
	res := h.auth.CurrentUser(pc.Gin.Request.Context(), payload.SubjectID)
	pc.Issues.Merge(res.Issues)
	if res.Issues.HasErrors() {
		return nil
	}
	return newUserView(res.User)
}

func (h *AuthHandler) storeSession(pc *pipeline.Context, res usecase.SessionResult) {
	pc.Issues.Merge(res.Issues)
	if !res.Succeeded() {
		return
	}
	pc.Set(pipeline.KeySession, pipeline.Session{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      newUserView(res.User),
	})
}

// requireUser fails routes mounted without the session middleware.
func requireUser(pc *pipeline.Context) {
	if _, ok := middleware.SessionFrom(pc.Gin); !ok {
		pc.Issues.AddError("session", issue.CodeUnauthorized, nil)
	}
}
