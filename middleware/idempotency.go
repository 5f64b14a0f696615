package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"farmgate/globals"
	"farmgate/logging"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// idempotencyRecord is stored as JSON under the scoped key. Response is
// empty while the first request is still running.
type idempotencyRecord struct {
	RequestHash string          `json:"request_hash"`
	Status      int             `json:"status,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter wraps http.ResponseWriter to capture status and body.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a client repeats a request
// with the same Idempotency-Key. Behavior:
//   - no header, or no redis: pass-through
//   - first use: a placeholder is stored, the handler runs and its response
//     is kept for ttl (server errors, empty responses and panics drop the
//     placeholder so the client can retry)
//   - same key, different body: 409
//   - same key while the first request is running: 409
//   - same key after completion: the stored response is returned
//
// Must run after Authenticate so keys are scoped per user.
func Idempotency(conn *redis.Client, ttl time.Duration) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || conn == nil {
				next(w, r, ps)
				return
			}
			if len(key) > 128 {
				utils.RespondWithError(w, http.StatusBadRequest, "Idempotency-Key too long")
				return
			}

			userID, _ := r.Context().Value(globals.UserIDKey).(string)
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			ctx := r.Context()
			logger := logging.FromContext(ctx)
			redisKey := "idem:" + userID + ":" + key
			reqHash := computeRequestHash(r, bodyBytes, userID)

			placeholder, _ := json.Marshal(idempotencyRecord{RequestHash: reqHash, CreatedAt: time.Now().UTC()})
			fresh, err := conn.SetNX(ctx, redisKey, placeholder, ttl).Result()
			if err != nil {
				logger.Warn("idempotency store unavailable", zap.Error(err))
				next(w, r, ps)
				return
			}

			if fresh {
				cw := &captureWriter{ResponseWriter: w}
				completed := false
				// a panic, an empty response or a server error frees the key
				defer func() {
					if !completed {
						if err := conn.Del(context.WithoutCancel(ctx), redisKey).Err(); err != nil {
							logger.Warn("idempotency placeholder not removed", zap.Error(err))
						}
					}
				}()
				next(cw, r, ps)

				if cw.status == 0 || cw.status >= http.StatusInternalServerError {
					return
				}
				completed = true
				done, _ := json.Marshal(idempotencyRecord{
					RequestHash: reqHash,
					Status:      cw.status,
					Response:    json.RawMessage(bytes.TrimSpace(cw.buf.Bytes())),
					CreatedAt:   time.Now().UTC(),
				})
				if err := conn.Set(ctx, redisKey, done, ttl).Err(); err != nil {
					logger.Warn("idempotency record not saved", zap.Error(err))
				}
				return
			}

			raw, err := conn.Get(ctx, redisKey).Bytes()
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}
			var existing idempotencyRecord
			if err := json.Unmarshal(raw, &existing); err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}

			if existing.RequestHash != reqHash {
				utils.RespondWithError(w, http.StatusConflict, "idempotency-key conflict")
				return
			}
			if existing.Status == 0 {
				utils.RespondWithError(w, http.StatusConflict, "request with this idempotency-key is in progress")
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(existing.Status)
			_, _ = w.Write(existing.Response)
		}
	}
}
