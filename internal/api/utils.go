package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-users-api/internal/types"
)

const (
	MessageSuccess      = "Success"
	MessageUnauthorized = "Unauthorized access"
	MessageInternal     = "An unexpected error occurred"
	MessageTimeout      = "Request timed out"

	CodeUnauthorized   = "Unauthorized"
	CodeNotFound       = "NotFound"
	CodeInvalid        = "Invalid"
	CodeDuplicateEmail = "DuplicateEmail"
	CodeBadRequest     = "BadRequest"
	CodeInternal       = "InternalServerError"
	CodeTimeout        = "Timeout"
)

// Response is the envelope every API response is written in.
type Response struct {
	Status  int    `json:"status" example:"200"`
	Message string `json:"message" example:"Success"`
	Data    any    `json:"data"`
	Error   any    `json:"error"`
}

// Respond writes a successful envelope.
func Respond(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	WriteJSONResponse(w, r, status, Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse writes a failure envelope. code is a short machine-readable
// identifier or, for validation failures, a field → message map.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string, code any) {
	WriteJSONResponse(w, r, status, Response{
		Status:  status,
		Message: message,
		Error:   code,
	})
}

// Unauthorized writes the fixed body returned for every rejected request.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, http.StatusUnauthorized, MessageUnauthorized, CodeUnauthorized)
}

// HandleError converts a service error into its envelope. Unknown errors
// are logged and surface as a generic 500.
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validationErr *types.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ErrorResponse(w, r, http.StatusBadRequest, "Validation failed", validationErr.Fields)
	case errors.Is(err, types.ErrInvalidStatus):
		ErrorResponse(w, r, http.StatusBadRequest, "Status must be either 'Active' or 'Inactive'.", CodeInvalid)
	case errors.Is(err, types.ErrDuplicateEmail):
		ErrorResponse(w, r, http.StatusBadRequest, "Email already exists", CodeDuplicateEmail)
	case errors.Is(err, types.ErrInvalidCredentials):
		ErrorResponse(w, r, http.StatusUnauthorized, "Invalid email or password", CodeUnauthorized)
	case errors.Is(err, types.ErrUnauthenticated):
		Unauthorized(w, r)
	case errors.Is(err, types.ErrNotFound):
		ErrorResponse(w, r, http.StatusNotFound, "User not found", CodeNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "Request deadline exceeded", slog.Any("error", err))
		ErrorResponse(w, r, http.StatusGatewayTimeout, MessageTimeout, CodeTimeout)
	default:
		logger.ErrorContext(r.Context(), "Unhandled error",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		ErrorResponse(w, r, http.StatusInternalServerError, MessageInternal, CodeInternal)
	}
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		// Status is already on the wire.
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			fieldName = strings.Trim(fieldName, `"`)
			return fmt.Errorf("body contains unknown key %q", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// BadRequest writes a 400 envelope for malformed input.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	ErrorResponse(w, r, http.StatusBadRequest, message, CodeBadRequest)
}

// InvalidBody writes the 400 envelope for a body DecodeJSONBody rejected.
// The decoder's description goes in the error field.
func InvalidBody(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
}
