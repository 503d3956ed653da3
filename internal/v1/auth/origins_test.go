package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAllowedOrigins_WithValue(t *testing.T) {
	origins := ParseAllowedOrigins("http://localhost:3000, https://example.com", []string{"http://default"})

	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, origins)
}

func TestParseAllowedOrigins_Empty(t *testing.T) {
	defaults := []string{"http://localhost:3000", "http://localhost:8080"}

	assert.Equal(t, defaults, ParseAllowedOrigins("", defaults))
	assert.Equal(t, defaults, ParseAllowedOrigins(" , ,", defaults))
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:3000", "https://example.com"}

	assert.True(t, OriginAllowed("http://localhost:3000", allowed))
	assert.True(t, OriginAllowed("HTTPS://EXAMPLE.COM", allowed))
	assert.False(t, OriginAllowed("https://evil.com", allowed))
}

func TestOriginAllowed_Wildcard(t *testing.T) {
	assert.True(t, OriginAllowed("https://anything.example", []string{"*"}))
}
