package i18n

import "net/http"

// Middleware injects a localizer into every request context. A "lang"
// query parameter wins over lang, then the Accept-Language header.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := []string{lang, r.Header.Get("Accept-Language")}
			if q := r.URL.Query().Get("lang"); q != "" {
				langs = append([]string{q}, langs...)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
