package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mssola/useragent"

	"sphere/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent and a coarse client
// kind from the request and adds them to the context. Forwarding headers are
// ignored; use NewClientMetadata behind a proxy. Apply it after chi's
// RequestID middleware so the request ID is copied too.
func ClientMetadata(next http.Handler) http.Handler {
	return NewClientMetadata(nil)(next)
}

// NewClientMetadata is ClientMetadata that honors X-Forwarded-For and
// X-Real-IP when the peer address falls inside one of trusted.
func NewClientMetadata(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.Header.Get("User-Agent")

			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trusted), ua, ClientKind(ua))
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				ctx = requestcontext.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientKind classifies a User-Agent header. Verifier callbacks arrive from
// server-side clients and usually classify as "unknown".
func ClientKind(header string) string {
	if strings.TrimSpace(header) == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	}
	if name, _ := ua.Browser(); name != "" {
		return "browser"
	}
	return "unknown"
}

// ClientIPFromRequest returns the client IP. Forwarding headers count only
// when the peer is a trusted proxy; X-Forwarded-For is then walked from the
// right, skipping further trusted hops.
func ClientIPFromRequest(r *http.Request, trusted []netip.Prefix) string {
	peer := peerAddr(r.RemoteAddr)
	if !peer.IsValid() {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !isTrusted(hop.Unmap(), trusted) {
				return hop.Unmap().String()
			}
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer.String()
}

// peerAddr parses "ip:port", "[v6]:port" or a bare IP.
func peerAddr(remote string) netip.Addr {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap()
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap()
	}
	return netip.Addr{}
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
