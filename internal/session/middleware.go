package session

import (
	"log/slog"
	"net/http"
)

// Middleware validates the bearer token of each request and stores the
// resulting Session in the request context. Requests without a valid token
// are answered by onFail (401 JSON by default).
func Middleware(v *Verifier, onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	if onFail == nil {
		onFail = defaultUnauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				onFail(w, r, err)
				return
			}
			s, err := v.Verify(token)
			if err != nil {
				slog.WarnContext(r.Context(), "Rejected access token", "error", err, "path", r.URL.Path)
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

func defaultUnauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="financas"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
