package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Lowercase scheme and host",
			in:   "HTTPS://Example.COM/People",
			want: "https://example.com/People",
		},
		{
			name: "Strip fragment",
			in:   "https://example.com/page#section-2",
			want: "https://example.com/page",
		},
		{
			name: "Strip default https port",
			in:   "https://example.com:443/page",
			want: "https://example.com/page",
		},
		{
			name: "Strip default http port",
			in:   "http://example.com:80/page",
			want: "http://example.com/page",
		},
		{
			name: "Strip trailing slash",
			in:   "https://example.com/people/",
			want: "https://example.com/people",
		},
		{
			name: "Root path kept",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "Drop tracking parameters",
			in:   "https://example.com/page?utm_source=mail&utm_campaign=x&id=7",
			want: "https://example.com/page?id=7",
		},
		{
			name: "Sort query parameters",
			in:   "https://example.com/page?b=2&a=1",
			want: "https://example.com/page?a=1&b=2",
		},
		{
			name: "Drop fbclid",
			in:   "https://example.com/page?fbclid=abc123",
			want: "https://example.com/page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}

func TestCanonicalURL_Idempotent(t *testing.T) {
	in := "HTTPS://Example.com:443/people/?utm_source=x&b=2&a=1#top"
	once := CanonicalURL(in)
	assert.Equal(t, once, CanonicalURL(once), "canonicalization should be idempotent")
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "faculty emails", NormalizeQuery("  Faculty   EMAILS "))
	// normalize(normalize(x)) = normalize(x)
	q := NormalizeQuery("Get\tall  Products")
	assert.Equal(t, q, NormalizeQuery(q))
}
