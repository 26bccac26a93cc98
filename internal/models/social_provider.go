package models

import (
	"errors"
	"net/url"
	"strings"
)

// SocialProvider identifies an external OAuth profile source.
type SocialProvider string

const (
	ProviderLinkedIn SocialProvider = "linkedin"
	ProviderGitHub   SocialProvider = "github"
)

// ErrUnknownProvider is returned by ParseSocialProvider for unrecognised names.
var ErrUnknownProvider = errors.New("social provider: unknown provider")

// SocialProviders lists the recognised providers in display order.
func SocialProviders() []SocialProvider {
	return []SocialProvider{ProviderLinkedIn, ProviderGitHub}
}

// ParseSocialProvider maps a user supplied name ("LinkedIn", "github", ...) to a provider.
func ParseSocialProvider(raw string) (SocialProvider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ProviderLinkedIn):
		return ProviderLinkedIn, nil
	case string(ProviderGitHub):
		return ProviderGitHub, nil
	default:
		return "", ErrUnknownProvider
	}
}

// SocialColumns names the user table columns that hold one provider's verification state.
type SocialColumns struct {
	ProfileURL string
	Subject    string
	Verified   string
	VerifiedAt string
}

// Columns returns the column set for the provider. Callers must pass a parsed provider.
func (p SocialProvider) Columns() SocialColumns {
	prefix := string(p)
	return SocialColumns{
		ProfileURL: prefix + "_profile_url",
		Subject:    prefix + "_subject",
		Verified:   prefix + "_verified",
		VerifiedAt: prefix + "_verified_at",
	}
}

// NormalizeProfileURL canonicalises a profile URL so equivalent spellings collide on the
// unique index: surrounding whitespace, scheme/host case, trailing slashes, query and
// fragment are discarded. The path keeps its case because provider ids are case sensitive.
func NormalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(parsed.Host)
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return scheme + "://" + host + path
}

// IsAbsoluteProfileURL reports whether a normalized profile URL names an http(s) host.
func IsAbsoluteProfileURL(normalized string) bool {
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" || parsed.User != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
