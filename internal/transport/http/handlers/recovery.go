package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulut0002/base-backend/internal/transport/http/middleware"
	"github.com/ulut0002/base-backend/internal/transport/http/pipeline"
	"github.com/ulut0002/base-backend/internal/usecase"
)

// Email is accepted as an alias of EmailOrUsername.
type passwordResetRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Email           string `json:"email"`
}

// Code and Hash come from the reset email; Token is the raw link token and replaces Hash.
type resetPasswordRequest struct {
	Code               string  `json:"code"`
	Hash               string  `json:"hash"`
	Token              string  `json:"token"`
	NewPassword        string  `json:"newPassword"`
	NewPasswordConfirm *string `json:"newPasswordConfirm"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyAccountRequest struct {
	Token string `json:"token"`
}

// RecoveryHandler exposes password reset and email verification endpoints.
type RecoveryHandler struct {
	recovery *usecase.RecoveryEngine
	isDev    bool
}

// NewRecoveryHandler constructs RecoveryHandler. isDev adds the raw code and token to issuance responses.
func NewRecoveryHandler(recovery *usecase.RecoveryEngine, isDev bool) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery, isDev: isDev}
}

// RegisterRoutes binds the recovery routes behind limits.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, session gin.HandlerFunc, limits ...gin.HandlerFunc) {
	if len(limits) > 0 {
		r.Use(limits...)
	}
	r.POST("/request-password-reset", h.RequestPasswordReset())
	r.POST("/reset-password", h.ResetPassword())
	r.POST("/send-verification", session, h.SendVerification())
	r.POST("/resend-verification", h.ResendVerification())
	r.POST("/verify-account", h.VerifyAccount())
}

// RequestPasswordReset emails a reset code.
func (h *RecoveryHandler) RequestPasswordReset() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[passwordResetRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[passwordResetRequest](pc)
			identifier := req.EmailOrUsername
			if identifier == "" {
				identifier = req.Email
			}
			h.storeIssuance(pc, h.recovery.RequestPasswordReset(pc.Gin.Request.Context(), identifier, true), "Password reset requested")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// ResetPassword redeems a reset code and sets a new password.
func (h *RecoveryHandler) ResetPassword() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[resetPasswordRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[resetPasswordRequest](pc)
			pc.Issues.Merge(h.recovery.ResetPassword(pc.Gin.Request.Context(), usecase.ResetPasswordInput{
				Code:               req.Code,
				Hash:               req.Hash,
				Token:              req.Token,
				NewPassword:        req.NewPassword,
				NewPasswordConfirm: req.NewPasswordConfirm,
			}))
			pc.Set(pipeline.KeyMessage, "Password has been reset successfully.")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// SendVerification emails a verification code to the signed-in user.
func (h *RecoveryHandler) SendVerification() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{requireUser},
		Handler: func(pc *pipeline.Context) {
			payload, _ := middleware.SessionFrom(pc.Gin)
			res := h.recovery.RequestEmailVerification(pc.Gin.Request.Context(), usecase.VerificationTarget{UserID: payload.SubjectID}, true)
			h.storeIssuance(pc, res, "Verification email sent")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// ResendVerification emails a verification code to the account registered with the address.
func (h *RecoveryHandler) ResendVerification() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[emailRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[emailRequest](pc)
			h.storeIssuance(pc, h.recovery.ResendVerification(pc.Gin.Request.Context(), req.Email), "Verification email resent")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

// VerifyAccount redeems the token from a verification link.
func (h *RecoveryHandler) VerifyAccount() gin.HandlerFunc {
	return pipeline.Route{
		Pre: []pipeline.Stage{pipeline.Decode[verifyAccountRequest]()},
		Handler: func(pc *pipeline.Context) {
			req := pipeline.Payload[verifyAccountRequest](pc)
			pc.Issues.Merge(h.recovery.VerifyAccount(pc.Gin.Request.Context(), req.Token))
			pc.Set(pipeline.KeyMessage, "Account verified")
		},
		Complete: pipeline.CompleteJSON(http.StatusOK),
	}.HandlerFunc()
}

func (h *RecoveryHandler) storeIssuance(pc *pipeline.Context, res usecase.IssuanceResult, message string) {
	pc.Issues.Merge(res.Issues)
	if !res.Succeeded() {
		return
	}

	view := IssuanceView{
		ExpiresAt:       res.ExpiresAt,
		ExpireInSeconds: res.ExpireInSeconds,
	}
	// The hash pins the code being guessed, so only development exposes it.
	if h.isDev {
		view.Hash = res.LinkTokenHash
		view.DevCode = res.Code
		view.DevToken = res.LinkToken
	}
	pc.Set(pipeline.KeyBody, view)
	pc.Set(pipeline.KeyMessage, message)
}
