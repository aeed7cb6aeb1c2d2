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

func discover(t *testing.T, html string) []models.PatternCandidate {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	limiter := limits.NewExtractionLimiter(nil)
	idx := anchor.Build(doc, "", limiter)
	return DiscoverPatterns(doc, idx, limiter)
}

func findPattern(candidates []models.PatternCandidate, prefix string) (models.PatternCandidate, bool) {
	for _, c := range candidates {
		if strings.HasPrefix(c.Pattern, prefix) {
			return c, true
		}
	}
	return models.PatternCandidate{}, false
}

func TestDiscoverPatterns_LabelValuePairs(t *testing.T) {
	html := `<html><body>
		<dl>
			<dt>Office</dt><dd>Room 101</dd>
		</dl>
		<dl>
			<dt>Office</dt><dd>Room 102</dd>
		</dl>
		<dl>
			<dt>Office</dt><dd>Room 103</dd>
		</dl>
	</body></html>`

	candidates := discover(t, html)

	c, ok := findPattern(candidates, "label_value:office")
	require.True(t, ok, "three repeated dt/dd pairs should form a candidate")
	assert.Equal(t, "office", c.SuggestedField)
	assert.GreaterOrEqual(t, c.Instances, 3)
	assert.GreaterOrEqual(t, len(c.SampleAnchors), 3, "candidate must cite at least 3 anchors")
}

func TestDiscoverPatterns_RepeatedClass(t *testing.T) {
	html := `<html><body>
		<span class="research-area">Quantum Computing</span>
		<span class="research-area">Particle Physics</span>
		<span class="research-area">Astrophysics</span>
		<span class="research-area">Condensed Matter</span>
	</body></html>`

	candidates := discover(t, html)

	c, ok := findPattern(candidates, "repeated_class:.research-area")
	require.True(t, ok)
	assert.Equal(t, 4, c.Instances)
	assert.GreaterOrEqual(t, c.Confidence, 0.5)
	assert.LessOrEqual(t, c.Confidence, 0.95, "pattern confidence is capped")
}

func TestDiscoverPatterns_SemanticEmailSweep(t *testing.T) {
	html := `<html><body>
		<p>a.one@example.com</p>
		<p>b.two@example.com</p>
		<p>c.three@example.com</p>
	</body></html>`

	candidates := discover(t, html)

	c, ok := findPattern(candidates, "semantic:email")
	require.True(t, ok)
	assert.Equal(t, models.TypeEmail, c.SuggestedType)
	assert.GreaterOrEqual(t, c.Instances, 3)
}

func TestDiscoverPatterns_BelowThresholdIgnored(t *testing.T) {
	html := `<html><body>
		<span class="lonely">Only one</span>
		<p>single@example.com</p>
	</body></html>`

	candidates := discover(t, html)

	_, ok := findPattern(candidates, "repeated_class:.lonely")
	assert.False(t, ok, "below min instances must not become a candidate")
	_, ok = findPattern(candidates, "semantic:email")
	assert.False(t, ok)
}

func TestLengthConsistency(t *testing.T) {
	assert.Equal(t, 1.0, lengthConsistency([]int{10}))
	assert.InDelta(t, 1.0, lengthConsistency([]int{20, 20, 20}), 0.001)
	assert.Less(t, lengthConsistency([]int{5, 300, 8}), 0.5, "wild lengths should score low")
}
