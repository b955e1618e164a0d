package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

const DefaultLocale = "en"

var supportedTags = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(supportedTags)

// LocaleFromRequest negotiates a supported locale from Accept-Language.
func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the best supported base language for an
// Accept-Language header value.
func NormalizeLocale(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLocale
	}
	base, _ := supportedTags[idx].Base()
	return base.String()
}

type ctxKey struct{}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

func LocaleFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(ctxKey{}).(string); ok && l != "" {
		return l
	}
	return DefaultLocale
}

// Middleware stores the negotiated locale in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLocale(r.Context(), LocaleFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
