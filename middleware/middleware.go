package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"farmgate/globals"
	"farmgate/logging"
	"farmgate/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

// JWT claims
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// Revocations reports token IDs revoked before their expiry.
type Revocations interface {
	Seen(ctx context.Context, id string) (bool, error)
}

type Authenticator struct {
	secret  []byte
	revoked Revocations
}

// NewAuthenticator validates HS256 tokens signed with secret. revoked may be nil.
func NewAuthenticator(secret []byte, revoked Revocations) *Authenticator {
	return &Authenticator{secret: secret, revoked: revoked}
}

// Parse validates a raw token string and returns its claims.
func (a *Authenticator) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if a.revoked != nil && claims.ID != "" {
		seen, err := a.revoked.Seen(ctx, claims.ID)
		if err != nil {
			// an unreachable denylist does not lock everyone out
			logging.FromContext(ctx).Warn("revocation lookup failed", zap.Error(err))
		} else if seen {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (a *Authenticator) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing token")
			return
		}

		claims, err := a.Parse(r.Context(), tokenString)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, globals.RoleKey, claims.Role)
		ctx = context.WithValue(ctx, globals.UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, globals.TokenIDKey, claims.ID)
		if claims.ExpiresAt != nil {
			ctx = context.WithValue(ctx, globals.TokenExpiryKey, claims.ExpiresAt.Time)
		}
		logger := logging.FromContext(ctx).With(zap.String("user_id", claims.UserID))
		next(w, r.WithContext(logging.WithLogger(ctx, logger)), ps)
	}
}

// Chain applies mws so that the first one runs outermost.
func Chain(mws ...func(httprouter.Handle) httprouter.Handle) func(httprouter.Handle) httprouter.Handle {
	return func(final httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			final = mws[i](final)
		}
		return final
	}
}
