package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Principal is the authenticated caller attached to the request
// context.
type Principal struct {
	ID   int64
	Role string
}

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFrom returns the authenticated principal of the request, if
// any.
func PrincipalFrom(r *http.Request) (Principal, bool) {
	p, ok := r.Context().Value(principalKey).(Principal)
	return p, ok
}

// AuthMiddleware checks the session cookies and attaches the principal
// to the request context. The login page, static assets, and the local
// detector ingest endpoint are reachable without authentication.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if r.URL.Path == "/login" ||
			r.URL.Path == "/auth/login" ||
			strings.HasPrefix(r.URL.Path, "/static/") ||
			strings.HasPrefix(r.URL.Path, "/api/detector") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("authenticated")
		if err != nil || cookie.Value != "true" {
			// API callers get a 401; browsers get the login page.
			if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" ||
				strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		principal := Principal{ID: 1, Role: "admin"}
		if userCookie, err := r.Cookie("user_id"); err == nil {
			if id, err := strconv.ParseInt(userCookie.Value, 10, 64); err == nil {
				principal.ID = id
			}
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
