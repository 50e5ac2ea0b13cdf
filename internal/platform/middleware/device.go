package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDeviceName struct{}

// DeviceInfo parses the User-Agent header into a human-readable device name
// and stores it in the context. The name ends up in audit events so
// compliance reviews can tell which client issued a request.
func DeviceInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ParseUserAgent(r.Header.Get("User-Agent"))
		ctx := context.WithValue(r.Context(), contextKeyDeviceName{}, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDeviceName retrieves the parsed device name from the context.
func GetDeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(contextKeyDeviceName{}).(string); ok {
		return name
	}
	return ""
}

// ParseUserAgent renders a User-Agent string as "Browser on OS".
func ParseUserAgent(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
