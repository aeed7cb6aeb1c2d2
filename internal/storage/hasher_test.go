package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
)

func TestFingerprint_StableAcrossNoise(t *testing.T) {
	base := `<html><body><div class="card"><h3>Dr. Jane Smith</h3></div></body></html>`

	variants := []struct {
		name string
		html string
	}{
		{
			name: "Extra whitespace",
			html: "<html><body>\n\t<div   class=\"card\"><h3>Dr. Jane Smith</h3></div>\n</body></html>",
		},
		{
			name: "Script injected",
			html: `<html><body><script>analytics()</script><div class="card"><h3>Dr. Jane Smith</h3></div></body></html>`,
		},
		{
			name: "Style injected",
			html: `<html><body><style>.card{color:red}</style><div class="card"><h3>Dr. Jane Smith</h3></div></body></html>`,
		},
		{
			name: "Comment injected",
			html: `<html><body><!-- rendered at 12:01 --><div class="card"><h3>Dr. Jane Smith</h3></div></body></html>`,
		},
		{
			name: "Nonce attribute",
			html: `<html><body><div class="card" data-nonce="a8f3e2"><h3>Dr. Jane Smith</h3></div></body></html>`,
		},
		{
			name: "Case of markup",
			html: `<HTML><BODY><DIV class="card"><H3>Dr. Jane Smith</H3></DIV></BODY></HTML>`,
		},
	}

	want := Fingerprint(base)
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			assert.Equal(t, want, Fingerprint(v.html), "noise must not change the fingerprint")
		})
	}
}

func TestFingerprint_ContentChangeChangesHash(t *testing.T) {
	a := Fingerprint(`<html><body><h3>Dr. Jane Smith</h3></body></html>`)
	b := Fingerprint(`<html><body><h3>Dr. Bob Jones</h3></body></html>`)
	assert.NotEqual(t, a, b)
}

func TestFingerprint_CacheBustingQueryStripped(t *testing.T) {
	a := Fingerprint(`<img src="/logo.png?v=abc123">`)
	b := Fingerprint(`<img src="/logo.png?v=def456">`)
	assert.Equal(t, a, b, "cache-busting params should not change the fingerprint")
}

func TestRequestKey(t *testing.T) {
	fp := Fingerprint("<html><body>x</body></html>")

	k1 := RequestKey("https://example.com/people", "faculty emails", fp)
	k2 := RequestKey("https://example.com/people", "Faculty   EMAILS", fp)
	assert.Equal(t, k1, k2, "query normalization folds case and spacing")

	// Ключ строится на той же нормализации, что и остальной pipeline
	k2n := RequestKey("https://example.com/people", utils.NormalizeQuery("  Faculty \t EMAILS "), fp)
	assert.Equal(t, k1, k2n)

	k3 := RequestKey("https://example.com/people", "product prices", fp)
	assert.NotEqual(t, k1, k3, "different queries give different keys")

	k4 := RequestKey("https://example.com/other", "faculty emails", fp)
	assert.NotEqual(t, k1, k4, "different pages give different keys")
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "article", DetectContentType(`<article><p>text</p></article>`))
	assert.Equal(t, "unknown", DetectContentType(`<div>hi</div>`))

	listing := `<ul>` + repeatLi(25) + `</ul>`
	assert.Equal(t, "listing", DetectContentType(listing))
}

func repeatLi(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "<li>item</li>"
	}
	return s
}
