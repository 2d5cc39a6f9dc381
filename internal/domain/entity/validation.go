package entity

import (
	"fmt"
	"net"
	"net/url"
)

const maxEndpointLength = 2048

var privateIPv4Ranges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// ValidateProviderEndpoint checks an operator-supplied provider URL before any
// credentials are sent to it. It must be https and must not resolve to a
// loopback, link-local or private address.
func ValidateProviderEndpoint(field, rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: field, Message: "endpoint is required"}
	}
	if len(rawURL) > maxEndpointLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("endpoint must not exceed %d characters", maxEndpointLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: field, Message: "endpoint must use https"}
	}
	if u.Hostname() == "" {
		return &ValidationError{Field: field, Message: "endpoint must have a host"}
	}

	// Unresolvable hosts pass; the send fails later with a transport error.
	ips, err := net.LookupIP(u.Hostname())
	if err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return &ValidationError{Field: field, Message: "endpoint cannot point to a private network"}
			}
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateIPv4Ranges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
