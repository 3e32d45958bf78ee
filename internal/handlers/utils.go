package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/sirupsen/logrus"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// extractToken finds a session token in the Authorization header, the
// token query parameter or the auth_token cookie, in that order. Browsers
// cannot set headers on a websocket handshake, hence the fallbacks.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return extractCookieToken(r.Header.Get("Cookie"), "auth_token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeEngineError maps an engine error kind onto an HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch engine.KindOf(err) {
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindInvalidState:
		status = http.StatusConflict
	case engine.KindIllegalAction:
		status = http.StatusBadRequest
	case engine.KindResourceExhausted, engine.KindChallengeProtocol:
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, engine.CodeOf(err), err.Error())
}
