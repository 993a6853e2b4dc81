package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Session cookies carry no Max-Age: the browser keeps them for the session
// and the server decides validity from the token itself.
func setTokenCookies(w http.ResponseWriter, pair *models.TokenPair, secure bool) {
	http.SetCookie(w, sessionCookie(common.AccessTokenCookieName, pair.AccessToken, secure))
	http.SetCookie(w, sessionCookie(common.RefreshTokenCookieName, pair.RefreshToken, secure))
}

func clearTokenCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := sessionCookie(name, "", secure)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func sessionCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
