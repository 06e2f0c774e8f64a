// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package webhookurl validates outbound webhook destinations against the
platform's SSRF security policy.

Every webhook URL must pass [Validate] before any outbound request is made.
This is a hard security invariant: user-supplied URLs could otherwise be used
to probe loopback services, cloud metadata endpoints, or private networks
from inside the platform's perimeter.

Architecture:

  - Pure function: no I/O, no DNS resolution — only literal classification.
  - Policy-driven: scheme, private-network, localhost, and host allow-list
    rules are injected from configuration.
  - Fail closed: any parse ambiguity rejects the URL.
*/
package webhookurl

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// # Policy & Result Types

// Policy describes which webhook destinations are acceptable.
type Policy struct {
	// HTTPSOnly rejects plain http URLs when true.
	HTTPSOnly bool

	// AllowPrivateNetworks permits RFC1918/loopback/link-local targets.
	// Only ever enabled in development environments.
	AllowPrivateNetworks bool

	// AllowLocalhost permits localhost / *.localhost / *.local hostnames.
	AllowLocalhost bool

	// AllowedHosts is an optional allow-list of host patterns: an exact
	// hostname, "*" (match all), or "*.domain" (domain and any subdomain).
	// An empty list disables allow-list enforcement.
	AllowedHosts []string
}

// Code identifies the validation outcome.
type Code string

const (
	CodeOK                       Code = "ok"
	CodeInvalidURL               Code = "invalid_url"
	CodeInvalidProtocol          Code = "invalid_protocol"
	CodeHTTPSRequired            Code = "https_required"
	CodeCredentialsNotAllowed    Code = "credentials_not_allowed"
	CodeLocalhostNotAllowed      Code = "localhost_not_allowed"
	CodePrivateNetworkNotAllowed Code = "private_network_not_allowed"
	CodeHostNotAllowed           Code = "host_not_allowed"
)

// Result is the outcome of validating a single candidate URL.
type Result struct {
	// Valid is true only when every policy gate passed.
	Valid bool `json:"valid"`
	// Code is the machine-readable outcome identifier.
	Code Code `json:"code"`
	// Message is a human-readable explanation safe to surface to the user.
	Message string `json:"message"`
	// NormalizedURL is the canonical form of the accepted URL.
	NormalizedURL string `json:"normalizedUrl,omitempty"`
	// Hostname is the normalized (lowercased, trailing-dot stripped) host.
	Hostname string `json:"hostname,omitempty"`
}

// # Validation

// Validate checks a candidate webhook URL against the policy.
//
// The gates run in a fixed order so the returned code is deterministic:
// parse → scheme → https → userinfo → localhost → private network →
// allow-list. The first failing gate wins.
func Validate(candidate string, policy Policy) Result {
	parsed, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil || parsed.Host == "" {
		return reject(CodeInvalidURL, "The webhook URL could not be parsed")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(CodeInvalidProtocol, fmt.Sprintf("Unsupported protocol %q: only http and https are allowed", parsed.Scheme))
	}

	if policy.HTTPSOnly && scheme != "https" {
		return reject(CodeHTTPSRequired, "The webhook URL must use https")
	}

	// Embedded credentials are rejected unconditionally: they leak through
	// logs and proxies and are never required by a well-behaved receiver.
	if parsed.User != nil {
		return reject(CodeCredentialsNotAllowed, "The webhook URL must not embed credentials")
	}

	hostname := normalizeHostname(parsed.Hostname())
	if hostname == "" {
		return reject(CodeInvalidURL, "The webhook URL has no hostname")
	}

	if !policy.AllowLocalhost && isLocalhostName(hostname) {
		return reject(CodeLocalhostNotAllowed, "Localhost webhook targets are not allowed")
	}

	if !policy.AllowPrivateNetworks && isPrivateAddressLiteral(hostname) {
		return reject(CodePrivateNetworkNotAllowed, "Private or internal network webhook targets are not allowed")
	}

	if !hostnameAllowed(hostname, policy.AllowedHosts) {
		return reject(CodeHostNotAllowed, "The webhook host is not on the allow-list")
	}

	parsed.Scheme = scheme
	parsed.Host = rebuildHost(hostname, parsed.Port())

	return Result{
		Valid:         true,
		Code:          CodeOK,
		Message:       "ok",
		NormalizedURL: parsed.String(),
		Hostname:      hostname,
	}
}

// reject builds a failed Result.
func reject(code Code, message string) Result {
	return Result{Valid: false, Code: code, Message: message}
}

// # Hostname Classification

// normalizeHostname lowercases the hostname and strips a single trailing dot
// (a fully-qualified "example.com." is equivalent to "example.com").
func normalizeHostname(hostname string) string {
	normalized := strings.ToLower(strings.TrimSpace(hostname))
	return strings.TrimSuffix(normalized, ".")
}

// isLocalhostName reports whether the hostname names the local machine by
// convention: "localhost", any "*.localhost" subdomain, or the mDNS
// "*.local" zone. A bare "local" is an ordinary (if odd) hostname and is
// not matched.
func isLocalhostName(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	return strings.HasSuffix(hostname, ".localhost") || strings.HasSuffix(hostname, ".local")
}

// v4 prefixes that are not covered by the netip convenience predicates.
var extraPrivateV4 = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),  // carrier-grade NAT
	netip.MustParsePrefix("198.18.0.0/15"),  // benchmarking
	netip.MustParsePrefix("192.0.0.0/24"),   // IETF protocol assignments
	netip.MustParsePrefix("240.0.0.0/4"),    // reserved
}

// isPrivateAddressLiteral reports whether the hostname is an IP literal in a
// private, loopback, link-local, CGNAT, benchmark, multicast, or otherwise
// non-public range. Non-literal hostnames return false: DNS resolution is
// intentionally not performed here.
func isPrivateAddressLiteral(hostname string) bool {
	addr, err := netip.ParseAddr(hostname)
	if err != nil {
		return false
	}

	// IPv4-mapped IPv6 addresses (::ffff:10.0.0.1) are classified by their
	// embedded IPv4 value.
	addr = addr.Unmap()

	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}

	if addr.Is4() {
		for _, prefix := range extraPrivateV4 {
			if prefix.Contains(addr) {
				return true
			}
		}
	}

	// fc00::/7 unique-local addresses are the IPv6 equivalent of RFC1918;
	// netip's IsPrivate covers them, but keep an explicit check in case the
	// address carries a zone.
	if addr.Is6() {
		uniqueLocal := netip.MustParsePrefix("fc00::/7")
		if uniqueLocal.Contains(addr.WithZone("")) {
			return true
		}
	}

	return false
}

// # Allow-list Matching

// hostnameAllowed reports whether the hostname matches the allow-list.
// An empty allow-list admits every hostname that survived the earlier gates.
func hostnameAllowed(hostname string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, pattern := range patterns {
		normalized := normalizeHostname(pattern)
		switch {
		case normalized == "*":
			return true
		case strings.HasPrefix(normalized, "*."):
			suffix := normalized[2:]
			if hostname == suffix || strings.HasSuffix(hostname, "."+suffix) {
				return true
			}
		case hostname == normalized:
			return true
		}
	}

	return false
}

// rebuildHost reassembles the URL host component, bracketing IPv6 literals.
func rebuildHost(hostname, port string) string {
	host := hostname
	if addr, err := netip.ParseAddr(hostname); err == nil && addr.Is6() {
		host = "[" + hostname + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return host
}
