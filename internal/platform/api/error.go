package api

import (
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message, Details: details, RequestID: requestID}})
}

// Convenience helpers
func BadRequest(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusBadRequest, code, message, requestID, details)
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusUnauthorized, code, message, requestID, nil)
}

func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusForbidden, code, message, requestID, nil)
}

func NotFound(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusNotFound, code, message, requestID, nil)
}

func Conflict(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusConflict, code, message, requestID, details)
}

func RateLimited(w http.ResponseWriter, code, message, requestID string, details map[string]any) {
	WriteError(w, http.StatusTooManyRequests, code, message, requestID, details)
}

func Internal(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", requestID, nil)
}

// WriteStatusError maps a gRPC-style status error from a store or gateway
// layer onto the JSON error envelope.
func WriteStatusError(w http.ResponseWriter, requestID string, err error) {
	st, ok := status.FromError(err)
	if !ok {
		Internal(w, requestID)
		return
	}
	switch st.Code() {
	case codes.NotFound:
		NotFound(w, "NOT_FOUND", st.Message(), requestID)
	case codes.InvalidArgument:
		BadRequest(w, "INVALID_ARGUMENT", st.Message(), requestID, nil)
	case codes.AlreadyExists:
		Conflict(w, "ALREADY_EXISTS", st.Message(), requestID, nil)
	case codes.Unavailable:
		WriteError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", st.Message(), requestID, nil)
	case codes.PermissionDenied:
		Forbidden(w, "FORBIDDEN", st.Message(), requestID)
	default:
		Internal(w, requestID)
	}
}
