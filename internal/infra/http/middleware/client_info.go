package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

type ClientInfo struct {
	IP             string
	UserAgent      string
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

type clientInfoKey struct{}

// ClientIP resolves the caller address from proxy headers, falling back to
// the socket peer and finally to "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP", "X-Client-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return entity.UnknownIP
}

func ParseClientInfo(r *http.Request) ClientInfo {
	info := ClientInfo{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if info.UserAgent == "" {
		return info
	}

	ua := useragent.New(info.UserAgent)
	info.Browser, info.BrowserVersion = ua.Browser()
	info.OS = ua.OS()
	info.Mobile = ua.Mobile()
	info.Bot = ua.Bot()
	return info
}

// WithClientInfo resolves the client address and user agent once per request.
func WithClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := ParseClientInfo(r)
		ctx := context.WithValue(r.Context(), clientInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientInfoFrom returns the info stored by WithClientInfo, or "unknown" IP
// when the middleware did not run.
func ClientInfoFrom(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(clientInfoKey{}).(ClientInfo); ok {
		return info
	}
	return ClientInfo{IP: entity.UnknownIP}
}
