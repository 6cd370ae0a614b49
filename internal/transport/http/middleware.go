package http

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader carries the caller's identity, established by an upstream gateway.
const UserHeader = "X-User-ID"

type ctxKey int

const ctxKeyUser ctxKey = iota

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+UserHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(ctxKeyUser).(string)
	return userID
}
