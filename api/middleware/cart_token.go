package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

// CartTokenFromRequest reads the guest cart token from the configured header, falling
// back to the cookie.
func CartTokenFromRequest(r *http.Request, cfg config.CartConfig) string {
	if r == nil {
		return ""
	}
	if cfg.TokenHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(cfg.TokenHeader)); v != "" {
			return v
		}
	}
	if cfg.TokenCookieName != "" {
		if c, err := r.Cookie(cfg.TokenCookieName); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

// WriteCartToken applies a cart token change to the response: a newly issued guest token
// is set as an HTTP-only cookie and echoed in the header, a cleared one expires the cookie.
func WriteCartToken(w http.ResponseWriter, cfg config.CartConfig, issued string, cleared bool) {
	switch {
	case issued != "":
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.TokenCookieName,
			Value:    issued,
			Path:     "/",
			MaxAge:   int(cfg.TokenTTL.Seconds()),
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		if cfg.TokenHeader != "" {
			w.Header().Set(cfg.TokenHeader, issued)
		}
	case cleared:
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.TokenCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
