package httpx

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
)

// VisitorCookie holds the anonymous voter token on the client.
const VisitorCookie = "voter_token"

// VisitorHeader lets non-browser clients replay their token explicitly.
const VisitorHeader = "X-Voter-Token"

const visitorCookieMaxAge = 60 * 60 * 24 * 365

// VisitorID resolves the identifier used to deduplicate votes: the
// authenticated username when a bearer token is present, otherwise a
// client-supplied token, minted here on first contact. The token is
// trusted as presented; dedup for anonymous voters is only as strong as
// the client's willingness to keep sending it back.
func VisitorID(w http.ResponseWriter, r *http.Request) string {
	if claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string); ok {
		if username := claims["username"]; username != "" {
			return username
		}
	}

	token := r.Header.Get(VisitorHeader)
	if token == "" {
		if cookie, err := r.Cookie(VisitorCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		token = newVisitorToken()
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     VisitorCookie,
		Value:    token,
		MaxAge:   visitorCookieMaxAge,
		SameSite: http.SameSiteNoneMode,
	})
	return token
}

func newVisitorToken() string {
	suffix := make([]byte, 8)
	rand.Read(suffix)
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(suffix)
}
