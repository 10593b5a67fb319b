// Package netguard validates URLs before the browser is pointed at
// them: scheme allowlist, host presence, and optional private/loopback
// address blocking for deployments where the crawler must not reach
// internal services.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("netguard: only http and https schemes are allowed")

// ErrNoHost is returned when a URL has no hostname.
var ErrNoHost = errors.New("netguard: URL has no host")

// ErrPrivateAddress is returned when a URL targets a private or
// loopback address and private targets are blocked.
var ErrPrivateAddress = errors.New("netguard: URL targets a private or loopback address")

// ValidateURL checks that rawURL uses http/https and has a hostname.
// When blockPrivate is set it also rejects URLs whose host is (or
// resolves to) a private or loopback IP. DNS failure is not an error
// here: an unresolvable external host fails at connection time anyway.
func ValidateURL(rawURL string, blockPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("netguard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return ErrNoHost
	}
	if !blockPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
