package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

// CompanyHeader selects the company when API keys are not required.
const CompanyHeader = "X-Company-ID"

// APIKeyAuth resolves the X-API-Key header to a core.Actor and stores it in
// the request context.
//
// When require is false and no key is sent, the actor is an administrator of
// the company named by X-Company-ID. This mode is meant for local use.
func APIKeyAuth(keys []config.APIKey, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			if apiKey == "" {
				if require {
					slog.Warn("auth: missing API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					writeAuthError(w, http.StatusUnauthorized, "APIキーが指定されていません")
					return
				}
				company := strings.TrimSpace(r.Header.Get(CompanyHeader))
				if company == "" {
					writeAuthError(w, http.StatusUnauthorized, "会社IDが指定されていません")
					return
				}
				actor := core.StaticActor{Company: company, Admin: true}
				next.ServeHTTP(w, r.WithContext(core.WithActor(r.Context(), actor)))
				return
			}

			key, ok := matchAPIKey(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "認証に失敗しました")
				return
			}

			actor := core.StaticActor{Company: key.CompanyID, Admin: key.Admin}
			next.ServeHTTP(w, r.WithContext(core.WithActor(r.Context(), actor)))
		})
	}
}

// matchAPIKey compares against every configured key in constant time so the
// response time does not reveal which key, if any, matched.
func matchAPIKey(key string, keys []config.APIKey) (config.APIKey, bool) {
	var found config.APIKey
	matched := 0
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			found = k
			matched = 1
		}
	}
	return found, matched == 1
}

// writeAuthError writes the same JSON shape as the handlers' errors. message
// is always one of the fixed strings above.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"AUTH002"}`))
}
