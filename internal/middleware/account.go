package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const (
	accountIDKey contextKey = "accountID"
	userIDKey    contextKey = "userID"
)

// AccountContext lifts the account and acting-user identifiers resolved by the
// upstream gateway into the request context. Authentication itself happens
// before requests reach this service; a request without both headers is
// rejected.
func AccountContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := strconv.ParseInt(r.Header.Get("X-Account-ID"), 10, 64)
		if err != nil || accountID <= 0 {
			http.Error(w, "X-Account-ID header required", http.StatusUnauthorized)
			return
		}

		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, "X-User-ID header required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		ctx = context.WithValue(ctx, userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountID returns the account id set by AccountContext.
func AccountID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(accountIDKey).(int64)
	return id, ok
}

// UserID returns the acting-user id set by AccountContext.
func UserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}

// SecurityHeaders sets the standard hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
