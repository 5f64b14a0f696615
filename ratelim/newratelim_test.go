package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)
	router := httprouter.New()
	router.POST("/x", rl.Limit(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1:1111"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1:2222"), "port is ignored")
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:3333"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2:1111"))
}

func TestSweep(t *testing.T) {
	rl := NewRateLimiter(60, 1, time.Minute)
	rl.getLimiter("a")
	rl.getLimiter("b")

	assert.Equal(t, 0, rl.Sweep(time.Now()))
	assert.Equal(t, 2, rl.Sweep(time.Now().Add(2*time.Minute)))
	assert.Empty(t, rl.visitors)
}
