package server

import (
	"encoding/json"
	"net/http"
)

// Failure codes returned alongside the error message. Clients branch on the
// code, not the message text.
const (
	codeInvalidArgument    = "invalid-argument"
	codeUnauthenticated    = "unauthenticated"
	codePermissionDenied   = "permission-denied"
	codeNotFound           = "not-found"
	codeAlreadyExists      = "already-exists"
	codeFailedPrecondition = "failed-precondition"
	codeInternal           = "internal"
)

var statusForCode = map[string]int{
	codeInvalidArgument:    http.StatusBadRequest,
	codeUnauthenticated:    http.StatusUnauthorized,
	codePermissionDenied:   http.StatusForbidden,
	codeNotFound:           http.StatusNotFound,
	codeAlreadyExists:      http.StatusConflict,
	codeFailedPrecondition: http.StatusConflict,
	codeInternal:           http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, code, msg string) {
	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}
