package ip

import (
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Checker validates client addresses against the trusted proxy list.
type Checker struct {
	proxies []*net.IPNet
	logger  *zap.Logger
}

// NewChecker parses the trusted proxies. Plain addresses become single host ranges.
func NewChecker(logger *zap.Logger, trusted []string) *Checker {
	proxies := make([]*net.IPNet, 0, len(trusted))
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				entry = ip.String() + "/" + strconv.Itoa(bits)
			}
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", zap.String("proxy", entry), zap.Error(err))
			continue
		}
		proxies = append(proxies, network)
	}

	return &Checker{proxies: proxies, logger: logger}
}

// IsTrustedProxy reports whether ip belongs to a trusted proxy.
func (c *Checker) IsTrustedProxy(ip net.IP) bool {
	for _, network := range c.proxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateIP returns the normalized address or UnknownIP.
func (c *Checker) ValidateIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil || ip.IsUnspecified() {
		return UnknownIP
	}
	return ip.String()
}
