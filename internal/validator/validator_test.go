package validator

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "https://example.com", Normalize("example.com"))
	assert.Equal(t, "https://example.com", Normalize("https://example.com"))
	assert.Equal(t, "http://example.com", Normalize("http://example.com"))
	assert.Equal(t, "HTTPS://Example.com", Normalize("HTTPS://Example.com"))
	assert.Equal(t, "https://example.com/a?b=c", Normalize("  example.com/a?b=c "))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"example.com",
		"https://example.com",
		"http://example.com/path",
		"github.com/darkodi",
		"ftp://example.com",
		"not a url",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize not idempotent for %q", in)
	}
}

func TestNormalizeURL(t *testing.T) {
	v := NewURLValidator()

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  string
	}{
		{"scheme-less", "github.com", "https://github.com", ""},
		{"https kept", "https://github.com/x", "https://github.com/x", ""},
		{"http kept", "http://example.com", "http://example.com", ""},
		{"empty", "", "", "URL is required"},
		{"whitespace", "   ", "", "URL is required"},
		{"ftp", "ftp://example.com", "", "Please provide a valid URL"},
		{"spaces", "not a url", "", "Please provide a valid URL"},
		{"no host", "https://", "", "Please provide a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, appErr := v.NormalizeURL(tt.input)
			if tt.wantErr != "" {
				require.NotNil(t, appErr)
				assert.Equal(t, tt.wantErr, appErr.Message)
				assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
				return
			}
			require.Nil(t, appErr)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidateURL_MaxLength(t *testing.T) {
	v := NewURLValidator()
	long := "https://example.com/" + strings.Repeat("a", 2100)

	appErr := v.ValidateURL(long)
	require.NotNil(t, appErr)
	assert.Equal(t, "URL exceeds maximum length of 2048 characters", appErr.Message)

	short := NewURLValidator().WithMaxLength(40)
	assert.Nil(t, short.ValidateURL("https://example.com/abc"))
	appErr = short.ValidateURL("https://example.com/" + strings.Repeat("a", 30))
	require.NotNil(t, appErr)
	assert.Equal(t, "URL exceeds maximum length of 40 characters", appErr.Message)
}

func TestValidateURL_PrivateIPs(t *testing.T) {
	open := NewURLValidator()
	assert.Nil(t, open.ValidateURL("http://localhost:3000"))

	strict := NewURLValidator().WithBlockPrivateIPs()
	blocked := []string{
		"http://localhost:3000",
		"http://127.0.0.1/admin",
		"http://10.0.0.8",
		"http://192.168.1.1",
		"http://[::1]:8080",
	}
	for _, u := range blocked {
		assert.NotNil(t, strict.ValidateURL(u), "expected %s to be blocked", u)
	}
	assert.Nil(t, strict.ValidateURL("https://github.com"))
}

func TestValidateURL_BlockedDomains(t *testing.T) {
	v := NewURLValidator().WithBlockedDomains("Evil.com")

	assert.NotNil(t, v.ValidateURL("https://evil.com"))
	assert.NotNil(t, v.ValidateURL("https://www.evil.com/x"))
	assert.Nil(t, v.ValidateURL("https://notevil.com"))
}

func TestValidateCustomCode(t *testing.T) {
	v := NewURLValidator()

	tests := []struct {
		name    string
		code    string
		wantErr string
	}{
		{"empty", "", "Custom code must not be empty"},
		{"valid", "abc123", ""},
		{"min length", "abc", ""},
		{"max length", strings.Repeat("a", 20), ""},
		{"too short", "ab", "Custom code must be at least 3 characters long"},
		{"too long", strings.Repeat("a", 21), "Custom code must be at most 20 characters long"},
		{"space", "has space", "Custom code must contain only letters and numbers"},
		{"hyphen", "my-link", "Custom code must contain only letters and numbers"},
		{"underscore", "my_link", "Custom code must contain only letters and numbers"},
		{"padded", " abc ", "Custom code must contain only letters and numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := v.ValidateCustomCode(tt.code)
			if tt.wantErr == "" {
				assert.Nil(t, appErr)
				return
			}
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantErr, appErr.Message)
		})
	}
}

func TestValidateShortCode(t *testing.T) {
	v := NewURLValidator()

	assert.Nil(t, v.ValidateShortCode("aZ09xyz"))
	assert.Nil(t, v.ValidateShortCode("ab"))

	appErr := v.ValidateShortCode("")
	require.NotNil(t, appErr)
	assert.Equal(t, "Short code is required", appErr.Message)

	for _, bad := range []string{"a.b", "a-b", "a b", strings.Repeat("x", 65)} {
		appErr := v.ValidateShortCode(bad)
		require.NotNil(t, appErr, bad)
		assert.Equal(t, "Invalid short code format", appErr.Message)
	}
}
