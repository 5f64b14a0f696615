package auth

import (
	"net/http"
	"time"

	"farmgate/globals"
	"farmgate/logging"
	"farmgate/middleware"
	"farmgate/models"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *Service
	secure bool
}

// NewHandler serves the auth routes. secure marks the session cookie Secure.
func NewHandler(svc *Service, secure bool) *Handler {
	return &Handler{svc: svc, secure: secure}
}

type sessionResponse struct {
	*models.User
	Token string `json:"token"`
}

func (h *Handler) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if value == "" {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Signup handles POST /api/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in SignupInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	sess, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	utils.RespondWithJSON(w, http.StatusCreated, sessionResponse{User: sess.User, Token: sess.Token})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in LoginInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), in)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	utils.RespondWithJSON(w, http.StatusOK, sessionResponse{User: sess.User, Token: sess.Token})
}

// Logout handles POST /api/auth/logout. The cookie is cleared even when the
// revocation store is unreachable.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tokenID, _ := r.Context().Value(globals.TokenIDKey).(string)
	if err := h.svc.Logout(r.Context(), tokenID); err != nil {
		logging.FromContext(r.Context()).Warn("token not revoked", zap.Error(err))
	}
	h.setCookie(w, "", time.Time{})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Logged out successfully"})
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := h.svc.Me(r.Context(), utils.ActorFromRequest(r))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}
