package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"farmgate/errs"
	"farmgate/globals"
	"farmgate/logging"
	"farmgate/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type M map[string]any

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithErr maps a service error to its status and message. Server
// side failures are logged with the request logger.
func RespondWithErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	RespondWithError(w, status, errs.Public(err))
}

// ActorFromRequest returns the authenticated caller set by the auth middleware.
func ActorFromRequest(r *http.Request) models.Actor {
	ctx := r.Context()
	id, _ := ctx.Value(globals.UserIDKey).(string)
	role, _ := ctx.Value(globals.RoleKey).(string)
	return models.Actor{ID: id, Role: models.Role(role)}
}

const maxBody = 1 << 20

// DecodeJSON reads a JSON body into dst and validates it. Errors are
// errs.ErrInvalidInput with a readable message.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload", errs.ErrInvalidInput)
	}
	if err := Validate(dst); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalidInput, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
