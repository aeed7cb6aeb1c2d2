package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

func roundTripIndex(t *testing.T) *anchor.Index {
	t.Helper()
	html := `<html><body>
		<h3 class="name">Dr. Jane Smith</h3>
		<a href="mailto:j.smith@example.edu">contact</a>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return anchor.Build(doc, "", limits.NewExtractionLimiter(nil))
}

func anchorByPreview(t *testing.T, idx *anchor.Index, preview string) string {
	t.Helper()
	for _, a := range idx.Anchors() {
		if a.TextPreview == preview {
			return a.ID
		}
	}
	t.Fatalf("no anchor with preview %q", preview)
	return ""
}

func TestRoundTrip_ExactValuePasses(t *testing.T) {
	idx := roundTripIndex(t)
	id := anchorByPreview(t, idx, "Dr. Jane Smith")

	sim, ok := RoundTrip(idx, id, "Dr. Jane Smith")
	assert.True(t, ok)
	assert.Equal(t, 1.0, sim)
}

func TestRoundTrip_InventedValueFails(t *testing.T) {
	idx := roundTripIndex(t)
	id := anchorByPreview(t, idx, "Dr. Jane Smith")

	sim, ok := RoundTrip(idx, id, "Dr. John Doe, Dean of Engineering")
	assert.False(t, ok, "value absent from the node must fail round-trip")
	assert.Less(t, sim, RoundTripThreshold)
}

func TestRoundTrip_EmailFromMailto(t *testing.T) {
	idx := roundTripIndex(t)
	id := anchorByPreview(t, idx, "contact")

	_, ok := RoundTrip(idx, id, "j.smith@example.edu")
	assert.True(t, ok, "email extractor should recover the mailto value")
}

func TestRoundTrip_UnknownAnchor(t *testing.T) {
	idx := roundTripIndex(t)

	sim, ok := RoundTrip(idx, "n_00000000", "anything")
	assert.False(t, ok)
	assert.Equal(t, 0.0, sim)
}

func TestVerifyAnchorHit(t *testing.T) {
	idx := roundTripIndex(t)
	id := anchorByPreview(t, idx, "Dr. Jane Smith")

	assert.True(t, VerifyAnchorHit(idx, models.Hit{Field: "name", Value: "Dr. Jane Smith", AnchorID: id}))
	assert.False(t, VerifyAnchorHit(idx, models.Hit{Field: "name", Value: "completely different", AnchorID: id}))
}
