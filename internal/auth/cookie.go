package auth

import (
	"net/http"
	"time"
)

const TokenCookieName = "token"

// CookiePolicy controls the attributes of the token cookie.
type CookiePolicy struct {
	Domain string
	// Production sends the cookie over TLS only with SameSite=None so a
	// frontend on another origin can use the API.
	Production bool
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteStrictMode
}

func (p CookiePolicy) SetTokenCookie(w http.ResponseWriter, token string, expires time.Time, now time.Time) {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   p.Domain,
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: p.sameSite(),
		Expires:  expires,
		MaxAge:   maxAge,
	})
}

func (p CookiePolicy) ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: p.sameSite(),
	})
}
