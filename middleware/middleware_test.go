package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"farmgate/globals"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func sign(t *testing.T, key []byte, claims Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		UserID:   "u1",
		Username: "alice",
		Role:     "buyer",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "tok-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

type denylist map[string]bool

func (d denylist) Seen(_ context.Context, id string) (bool, error) { return d[id], nil }

type brokenDenylist struct{}

func (brokenDenylist) Seen(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func whoami(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, _ := r.Context().Value(globals.UserIDKey).(string)
	role, _ := r.Context().Value(globals.RoleKey).(string)
	_, _ = io.WriteString(w, id+"/"+role)
}

func TestAuthenticate(t *testing.T) {
	good := sign(t, secret, validClaims(), jwt.SigningMethodHS256)

	expiredClaims := validClaims()
	expiredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expired := sign(t, secret, expiredClaims, jwt.SigningMethodHS256)

	forged := sign(t, []byte("other"), validClaims(), jwt.SigningMethodHS256)
	wrongAlg := sign(t, secret, validClaims(), jwt.SigningMethodHS512)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		auth   *Authenticator
		status int
		body   string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, NewAuthenticator(secret, nil), http.StatusOK, "u1/buyer"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: good}) }, NewAuthenticator(secret, nil), http.StatusOK, "u1/buyer"},
		{"missing", func(*http.Request) {}, NewAuthenticator(secret, nil), http.StatusUnauthorized, ""},
		{"not bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, NewAuthenticator(secret, nil), http.StatusUnauthorized, ""},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, NewAuthenticator(secret, nil), http.StatusUnauthorized, ""},
		{"forged", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, NewAuthenticator(secret, nil), http.StatusUnauthorized, ""},
		{"wrong alg", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+wrongAlg) }, NewAuthenticator(secret, nil), http.StatusUnauthorized, ""},
		{"revoked", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, NewAuthenticator(secret, denylist{"tok-1": true}), http.StatusUnauthorized, ""},
		{"denylist down", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) }, NewAuthenticator(secret, brokenDenylist{}), http.StatusOK, "u1/buyer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			router.GET("/me", tt.auth.Authenticate(whoami))

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var trail []string
	mw := func(name string) func(httprouter.Handle) httprouter.Handle {
		return func(next httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
				trail = append(trail, name)
				next(w, r, ps)
			}
		}
	}
	h := Chain(mw("a"), mw("b"))(func(http.ResponseWriter, *http.Request, httprouter.Params) {
		trail = append(trail, "handler")
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, []string{"a", "b", "handler"}, trail)
}

func TestObserve(t *testing.T) {
	router := httprouter.New()
	router.GET("/boom", Observe(zap.NewNop(), "/boom")(func(http.ResponseWriter, *http.Request, httprouter.Params) {
		panic("kaboom")
	}))
	router.GET("/ok", Observe(zap.NewNop(), "/ok")(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = conn.Close() })

	var calls atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		n := calls.Add(1)
		if strings.Contains(r.URL.RawQuery, "fail") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"call":`+strconv.Itoa(int(n))+`}`)
	}
	withUser := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			next(w, r.WithContext(context.WithValue(r.Context(), globals.UserIDKey, "u1")), ps)
		}
	}
	router := httprouter.New()
	router.POST("/checkout", Chain(withUser, Idempotency(conn, time.Hour))(handler))

	do := func(key, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := do("k1", "/checkout", `{"a":1}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"call":1}`, first.Body.String())

	replay := do("k1", "/checkout", `{"a":1}`)
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, `{"call":1}`, replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.EqualValues(t, 1, calls.Load())

	conflict := do("k1", "/checkout", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	none := do("", "/checkout", `{"a":1}`)
	assert.Equal(t, http.StatusOK, none.Code)
	assert.EqualValues(t, 2, calls.Load())

	failed := do("k2", "/checkout?fail", `{}`)
	assert.Equal(t, http.StatusBadGateway, failed.Code)
	assert.False(t, mr.Exists("idem:u1:k2"), "server errors leave the key reusable")

	require.NoError(t, mr.Set("idem:u1:k3", `{"request_hash":"`+computeRequestHash(
		httptest.NewRequest(http.MethodPost, "/checkout", nil), []byte(`{}`), "u1")+`"}`))
	inflight := do("k3", "/checkout", `{}`)
	assert.Equal(t, http.StatusConflict, inflight.Code)
}

func TestIdempotencyPanicFreesKey(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = conn.Close() })

	var calls atomic.Int32
	handler := func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		if calls.Add(1) == 1 {
			panic("provider client exploded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}
	withUser := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			next(w, r.WithContext(context.WithValue(r.Context(), globals.UserIDKey, "u1")), ps)
		}
	}
	router := httprouter.New()
	router.POST("/checkout", Chain(Observe(zap.NewNop(), "/checkout"), withUser, Idempotency(conn, time.Hour))(handler))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "kX")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, mr.Exists("idem:u1:kX"), "a panicking handler leaves the key reusable")

	rec = do()
	assert.Equal(t, http.StatusCreated, rec.Code, "retry runs the handler instead of reporting in progress")
	assert.True(t, mr.Exists("idem:u1:kX"))
	assert.EqualValues(t, 2, calls.Load())
}
