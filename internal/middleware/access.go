package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// AccessConfig restricts which callers may reach the API.
type AccessConfig struct {
	Logger *slog.Logger
	// AllowedDomain, when set, must prefix the Referer (or Origin) header.
	AllowedDomain string
	// AllowedIPs, when non-empty, lists the client IPs (or CIDRs) accepted.
	AllowedIPs []string
}

// RequireDomain rejects requests whose Referer or Origin does not start with
// cfg.AllowedDomain. It is a no-op when no domain is configured.
func RequireDomain(cfg AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.AllowedDomain == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			referer := r.Header.Get("Referer")
			if referer == "" {
				referer = r.Header.Get("Origin")
			}

			if referer == "" || !strings.HasPrefix(referer, cfg.AllowedDomain) {
				cfg.Logger.Warn("access denied: referer",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("referer", referer),
				)
				writeError(w, http.StatusForbidden, "Access denied", "Requests must come from authorized domain")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireIP rejects requests from clients outside cfg.AllowedIPs. It expects
// chi's RealIP middleware to have normalized RemoteAddr.
func RequireIP(cfg AccessConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(cfg.AllowedIPs) == 0 {
			return next
		}

		allow := parseAllowList(cfg.AllowedIPs, cfg.Logger)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := net.ParseIP(ClientIP(r))
			if ip == nil || !allow.contains(ip) {
				cfg.Logger.Warn("access denied: ip",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("ip", ClientIP(r)),
				)
				writeError(w, http.StatusForbidden, "Access denied", "Client address not allowed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type allowList struct {
	ips  []net.IP
	nets []*net.IPNet
}

func parseAllowList(entries []string, logger *slog.Logger) allowList {
	var list allowList
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn("ignoring invalid CIDR in allow-list", slog.String("entry", entry))
				continue
			}
			list.nets = append(list.nets, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.Warn("ignoring invalid IP in allow-list", slog.String("entry", entry))
			continue
		}
		list.ips = append(list.ips, ip)
	}
	return list
}

func (l allowList) contains(ip net.IP) bool {
	for _, allowed := range l.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, n := range l.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
