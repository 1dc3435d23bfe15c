package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher(t *testing.T) {
	m := NewPathMatcher([]string{"/", "/items", "/items/*", "/sublets", "/sublets/*"})

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/items", true},
		{"/items/42", true},
		{"/items/42/offers", true},
		{"/sublets", true},
		{"/sublets/7", true},
		{"/itemsy", false},
		{"/callback", false},
		{"/healthz", false},
		{"/metrics", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.path), "path %s", tt.path)
	}
}

func TestPathMatcher_Empty(t *testing.T) {
	m := NewPathMatcher(nil)
	assert.False(t, m.Match("/"))
	assert.False(t, m.Match("/items"))
}
