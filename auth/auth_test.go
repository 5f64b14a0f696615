package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmgate/errs"
	"farmgate/middleware"
	"farmgate/models"
	"farmgate/rdx"
	"farmgate/store/memstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("auth-test-secret")

func signupInput(username, email string) SignupInput {
	return SignupInput{
		FullName:        " Ada Farmer ",
		Username:        username,
		Email:           email,
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		Gender:          "female",
		Role:            models.RoleFarmer,
		Phone:           "555-0100",
		Address:         "1 Field Rd",
	}
}

func TestSignupAndLogin(t *testing.T) {
	svc := NewService(memstore.New(), secret, time.Hour, nil)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, signupInput("ada", "Ada@Example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "Ada Farmer", sess.User.FullName)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEqual(t, "hunter22", sess.User.Password)

	claims, err := middleware.NewAuthenticator(secret, nil).Parse(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, "farmer", claims.Role)

	_, err = svc.Signup(ctx, signupInput("ada", "other@example.com"))
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Signup(ctx, signupInput("bob", "ada@example.com"))
	assert.ErrorIs(t, err, ErrUserExists)

	mismatch := signupInput("carl", "carl@example.com")
	mismatch.ConfirmPassword = "nope"
	_, err = svc.Signup(ctx, mismatch)
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	logged, err := svc.Login(ctx, LoginInput{Username: "ada", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, logged.User.ID)

	_, err = svc.Login(ctx, LoginInput{Username: "ada", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Username: "ghost", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, http.StatusBadRequest, errs.HTTPStatus(err))

	me, err := svc.Me(ctx, models.Actor{ID: sess.User.ID, Role: models.RoleFarmer})
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)
	_, err = svc.Me(ctx, models.Actor{ID: "missing"})
	assert.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestAuthRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = conn.Close() })
	revoked := rdx.NewMarks(conn, "auth:revoked:", time.Hour)

	svc := NewService(memstore.New(), secret, time.Hour, revoked)
	h := NewHandler(svc, false)
	authn := middleware.NewAuthenticator(secret, revoked)

	router := httprouter.New()
	router.POST("/api/auth/signup", h.Signup)
	router.POST("/api/auth/login", h.Login)
	router.POST("/api/auth/logout", authn.Authenticate(h.Logout))
	router.GET("/api/auth/me", authn.Authenticate(h.Me))

	body := `{"fullName":"Bob","username":"bob","email":"bob@example.com","password":"secret1",
		"confirmPassword":"secret1","gender":"male","role":"buyer","phone":"1","address":"x"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "bob", created["username"])
	assert.Equal(t, "buyer", created["role"])
	assert.NotContains(t, created, "password")
	token, _ := created["token"].(string)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Username or Email already exists"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		strings.NewReader(`{"username":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"bob","password":"bad"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid username or password"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "revoked token is rejected")
}
