package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
)

// Authenticated requires a valid bearer token carrying a username claim.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), user).Handler(next)
	}
}

func user(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Username(r) == "" {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.no_username_claim")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalAuth resolves a bearer token when one is presented, but lets the
// request through anonymously when there is none or it does not verify.
// The authorized branch runs against a ResponseBuffer so a failed check
// can be discarded instead of surfacing as 401.
func OptionalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authorized := oauth.Authorize(secret, nil)(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			buf := httpx.NewResponseBuffer()
			authorized.ServeHTTP(buf, r)
			if buf.Status() == http.StatusUnauthorized {
				log.Debug("auth.optional: invalid token, proceeding anonymously")
				next.ServeHTTP(w, r)
				return
			}

			if err := buf.Flush(w); err != nil {
				log.Errorf("auth.optional.flush: %s", err)
			}
		})
	}
}

// Username returns the authenticated caller's name, or "" for anonymous requests.
func Username(r *http.Request) string {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return ""
	}
	return claims["username"]
}
