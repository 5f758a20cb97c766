package handlers

import (
	"net/http"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/http/respond"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/middleware"
	"github.com/hongminglow/loandesk/internal/models/dto"
)

// AuthHandler owns the sign-up, sign-in, sign-out and identity endpoints.
type AuthHandler struct {
	auth *auth.Service
	log  logging.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service, log logging.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, log: log.With("handler", "auth")}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", h.handleSignUp)
	mux.HandleFunc("POST /auth/signin", h.handleSignIn)
	mux.HandleFunc("POST /auth/signout", h.handleSignOut)
	mux.HandleFunc("GET /auth/me", h.handleMe)
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := respond.Decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.log.Info(r.Context(), "sign up refused", "error", err)
		writeServiceError(w, err)
		return
	}

	out := dto.SignUpResponse{User: res.User, ConfirmationRequired: res.Session == nil}
	if res.Session != nil {
		s := dto.NewSessionResponse(*res.Session)
		out.Session = &s
	}
	msg := "Account created"
	if out.ConfirmationRequired {
		msg = "Account created. Check your email to confirm it before signing in."
	}
	respond.JSON(w, http.StatusCreated, msg, out)
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if err := respond.Decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sess, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Info(r.Context(), "sign in refused", "error", err)
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Signed in", dto.NewSessionResponse(sess))
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if !p.Authenticated() {
		writeServiceError(w, loans.ErrAuthRequired)
		return
	}
	if err := h.auth.SignOut(r.Context(), p.AccessToken); err != nil {
		h.log.Warn(r.Context(), "sign out failed", "user_id", p.UserID, "error", err)
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Signed out", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if !p.Authenticated() {
		writeServiceError(w, loans.ErrAuthRequired)
		return
	}
	user, err := h.auth.User(r.Context(), p.AccessToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.MeResponse{User: user, IsAdmin: p.IsAdmin})
}
