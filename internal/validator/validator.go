package validator

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/darkodi/linkify/internal/codegen"
	apperrors "github.com/darkodi/linkify/internal/errors"
)

const (
	MinCustomCodeLength = 3
	MaxCustomCodeLength = 20
	MaxShortCodeLength  = 64
	DefaultMaxURLLength = 2048
)

// URLValidator validates URL inputs
type URLValidator struct {
	maxLength       int
	allowedSchemes  []string
	blockedDomains  []string
	blockPrivateIPs bool
}

// NewURLValidator creates a validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		maxLength:      DefaultMaxURLLength,
		allowedSchemes: []string{"http", "https"},
		blockedDomains: []string{},
	}
}

// Normalize prepends https:// to scheme-less input. It is idempotent.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}

// NormalizeURL normalizes rawURL and validates the result.
// It returns the URL to persist.
func (v *URLValidator) NormalizeURL(rawURL string) (string, *apperrors.AppError) {
	if strings.TrimSpace(rawURL) == "" {
		return "", apperrors.MissingField("URL is required")
	}

	// an explicit foreign scheme (ftp://, javascript://) must not be wrapped in https://
	if i := strings.Index(rawURL, "://"); i > 0 && !v.isAllowedScheme(strings.TrimSpace(rawURL[:i])) {
		return "", apperrors.Validation("Please provide a valid URL")
	}

	normalized := Normalize(rawURL)
	if appErr := v.ValidateURL(normalized); appErr != nil {
		return "", appErr
	}
	return normalized, nil
}

// ValidateURL validates an absolute URL string
func (v *URLValidator) ValidateURL(rawURL string) *apperrors.AppError {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.MissingField("URL is required")
	}

	if len(rawURL) > v.maxLength {
		return apperrors.Validation(fmt.Sprintf("URL exceeds maximum length of %d characters", v.maxLength))
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.Validation("Please provide a valid URL")
	}

	if !v.isAllowedScheme(parsedURL.Scheme) {
		return apperrors.Validation("Please provide a valid URL")
	}

	if parsedURL.Host == "" || parsedURL.Hostname() == "" || strings.HasSuffix(parsedURL.Host, ":") {
		return apperrors.Validation("Please provide a valid URL")
	}

	if v.isBlockedDomain(parsedURL.Hostname()) {
		return apperrors.Validation("This domain is not allowed")
	}

	if v.blockPrivateIPs && isPrivateHost(parsedURL.Hostname()) {
		return apperrors.Validation("URLs pointing to private IPs are not allowed")
	}

	return nil
}

// ValidateShortCode validates a short code taken from a request path
func (v *URLValidator) ValidateShortCode(code string) *apperrors.AppError {
	if code == "" {
		return apperrors.MissingField("Short code is required")
	}
	if len(code) > MaxShortCodeLength || !codegen.IsAlphanumericString(code) {
		return apperrors.Validation("Invalid short code format")
	}
	return nil
}

// ValidateCustomCode validates a caller-supplied code exactly as sent
func (v *URLValidator) ValidateCustomCode(code string) *apperrors.AppError {
	if code == "" {
		return apperrors.Validation("Custom code must not be empty")
	}

	if !codegen.IsAlphanumericString(code) {
		return apperrors.Validation("Custom code must contain only letters and numbers")
	}
	if len(code) < MinCustomCodeLength {
		return apperrors.Validation("Custom code must be at least 3 characters long")
	}
	if len(code) > MaxCustomCodeLength {
		return apperrors.Validation("Custom code must be at most 20 characters long")
	}

	return nil
}

// ============================================================
// HELPER METHODS
// ============================================================

func (v *URLValidator) isAllowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func (v *URLValidator) isBlockedDomain(host string) bool {
	host = strings.ToLower(host)
	for _, blocked := range v.blockedDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// isPrivateHost only inspects literal hosts; it never resolves DNS.
func isPrivateHost(host string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// ============================================================
// CONFIGURATION METHODS
// ============================================================

// WithMaxLength sets maximum URL length
func (v *URLValidator) WithMaxLength(length int) *URLValidator {
	v.maxLength = length
	return v
}

// WithBlockedDomains adds domains to block list
func (v *URLValidator) WithBlockedDomains(domains ...string) *URLValidator {
	for _, d := range domains {
		v.blockedDomains = append(v.blockedDomains, strings.ToLower(d))
	}
	return v
}

// WithBlockPrivateIPs rejects localhost and private/loopback IP literals
func (v *URLValidator) WithBlockPrivateIPs() *URLValidator {
	v.blockPrivateIPs = true
	return v
}
