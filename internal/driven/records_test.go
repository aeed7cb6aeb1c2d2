package driven

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

func facultyIndex(t *testing.T) *anchor.Index {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(facultyPage))
	require.NoError(t, err)
	idx := anchor.Build(doc, "https://example.edu/faculty", limits.NewExtractionLimiter(nil))
	require.Greater(t, idx.Len(), 0)
	return idx
}

// anchorOf находит якорь по тегу элемента и превью: сначала точное
// совпадение, затем подстрока ("Professor" не должен ловить
// "Associate Professor")
func anchorOf(t *testing.T, idx *anchor.Index, tag, text string) string {
	t.Helper()
	for _, a := range idx.Anchors() {
		if a.ElementType == tag && a.TextPreview == text {
			return a.ID
		}
	}
	for _, a := range idx.Anchors() {
		if a.ElementType == tag && strings.Contains(a.TextPreview, text) {
			return a.ID
		}
	}
	t.Fatalf("no %s anchor with text %q", tag, text)
	return ""
}

func facultyFindings(t *testing.T, idx *anchor.Index) *models.Findings {
	t.Helper()
	f := models.NewFindings()
	people := []struct{ name, title, email string }{
		{"Dr. Jane Smith", "Professor", "j.smith@example.edu"},
		{"Dr. Bob Jones", "Associate Professor", "b.jones@example.edu"},
		{"Dr. Alice Chen", "Assistant Professor", "a.chen@example.edu"},
	}
	for _, p := range people {
		f.AddHit(models.Hit{Field: "name", Value: p.name, AnchorID: anchorOf(t, idx, "h3", p.name), Confidence: 0.9, Validated: true})
		f.AddHit(models.Hit{Field: "title", Value: p.title, AnchorID: anchorOf(t, idx, "p", p.title), Confidence: 0.85, Validated: true})
		f.AddHit(models.Hit{Field: "email", Value: p.email, AnchorID: anchorOf(t, idx, "a", p.email), Confidence: 0.9, Validated: true})
	}
	return f
}

func successNegotiation(fields ...models.FieldSpec) *models.NegotiationResult {
	return &models.NegotiationResult{
		Status:      models.NegotiationSuccess,
		FinalFields: fields,
		Changes:     models.NegotiationChanges{Renamed: map[string]string{}},
	}
}

func TestMaterialize_GroupsHitsIntoRows(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "title", Kind: models.FieldExpected, Type: models.TypeString},
		models.FieldSpec{Name: "email", Kind: models.FieldExpected, Type: models.TypeEmail},
	)

	records, dropped := MaterializeRecords(idx, negotiation, findings, models.EmptyAugmentation(), models.ModeSoft)

	require.Len(t, records, 3)
	assert.Zero(t, dropped)

	// Значения одной карточки остаются в одной строке
	byName := make(map[string]models.Record)
	for _, r := range records {
		byName[r["name"]] = r
	}
	jane := byName["Dr. Jane Smith"]
	require.NotNil(t, jane)
	assert.Equal(t, "Professor", jane["title"])
	assert.Equal(t, "j.smith@example.edu", jane["email"])

	bob := byName["Dr. Bob Jones"]
	require.NotNil(t, bob)
	assert.Equal(t, "b.jones@example.edu", bob["email"])
}

func TestMaterialize_SoftModeDropsRowsMissingRequired(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	// Третья карточка без name: имитируем, убрав её name-hit
	trimmed := models.NewFindings()
	for _, h := range findings.Hits {
		if h.Field == "name" && h.Value == "Dr. Alice Chen" {
			continue
		}
		trimmed.AddHit(h)
	}

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "email", Kind: models.FieldExpected, Type: models.TypeEmail},
	)

	records, dropped := MaterializeRecords(idx, negotiation, trimmed, models.EmptyAugmentation(), models.ModeSoft)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, dropped, "row without the required field is dropped")
}

func TestMaterialize_StrictModeRequiresExpected(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	// Боб теряет email
	trimmed := models.NewFindings()
	for _, h := range findings.Hits {
		if h.Field == "email" && strings.HasPrefix(h.Value, "b.jones") {
			continue
		}
		trimmed.AddHit(h)
	}

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "email", Kind: models.FieldExpected, Type: models.TypeEmail},
	)

	soft, softDropped := MaterializeRecords(idx, negotiation, trimmed, models.EmptyAugmentation(), models.ModeSoft)
	assert.Len(t, soft, 3, "soft mode keeps the partial row")
	assert.Zero(t, softDropped)

	strict, strictDropped := MaterializeRecords(idx, negotiation, trimmed, models.EmptyAugmentation(), models.ModeStrict)
	assert.Len(t, strict, 2, "strict mode drops the row without an expected value")
	assert.Equal(t, 1, strictDropped)
}

func TestMaterialize_RenameAppliedToHits(t *testing.T) {
	idx := facultyIndex(t)

	findings := models.NewFindings()
	findings.AddHit(models.Hit{
		Field: "e-mail", Value: "j.smith@example.edu",
		AnchorID: anchorOf(t, idx, "a", "j.smith"), Confidence: 0.9, Validated: true,
	})
	findings.AddHit(models.Hit{
		Field: "name", Value: "Dr. Jane Smith",
		AnchorID: anchorOf(t, idx, "h3", "Jane"), Confidence: 0.9, Validated: true,
	})

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "email", Kind: models.FieldExpected, Type: models.TypeEmail},
	)
	negotiation.Changes.Renamed = map[string]string{"e-mail": "email"}

	records, _ := MaterializeRecords(idx, negotiation, findings, models.EmptyAugmentation(), models.ModeSoft)

	require.Len(t, records, 1)
	assert.Equal(t, "j.smith@example.edu", records[0]["email"])
	_, hasOld := records[0]["e-mail"]
	assert.False(t, hasOld, "old field name must not leak into records")
}

func TestMaterialize_SingletonFallsToFirstRow(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	// Один департамент на всю страницу
	findings.AddHit(models.Hit{
		Field: "department", Value: "Department of Physics",
		AnchorID: anchorOf(t, idx, "h1", "Physics"), Confidence: 0.9, Validated: true,
	})

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "department", Kind: models.FieldOptional, Type: models.TypeString},
	)

	records, _ := MaterializeRecords(idx, negotiation, findings, models.EmptyAugmentation(), models.ModeSoft)

	require.NotEmpty(t, records)
	assert.Equal(t, "Department of Physics", records[0]["department"])
}

func TestMaterialize_CompletionsFillRows(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	// Track B дополняет поле office, подтвержденное якорем карточки
	aug := models.EmptyAugmentation()
	aug.Completions = append(aug.Completions, models.Completion{
		Field: "office", Value: "Professor",
		Evidence:   models.CompletionEvidence{AnchorID: anchorOf(t, idx, "p", "Professor")},
		Confidence: 0.8,
	})

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "office", Kind: models.FieldOptional, Type: models.TypeString},
	)

	records, _ := MaterializeRecords(idx, negotiation, findings, aug, models.ModeSoft)

	require.NotEmpty(t, records)
	found := false
	for _, r := range records {
		if r["office"] != "" {
			found = true
		}
	}
	assert.True(t, found, "completion value lands in a row")
}

func TestMaterialize_DiscoverableSeedsMaterialized(t *testing.T) {
	idx := facultyIndex(t)
	findings := facultyFindings(t, idx)

	var seeds []string
	for _, title := range []string{"Professor", "Associate Professor", "Assistant Professor"} {
		seeds = append(seeds, anchorOf(t, idx, "p", title))
	}

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
		models.FieldSpec{Name: "rank", Kind: models.FieldDiscoverable, Type: models.TypeString, SeedAnchorIDs: seeds},
	)

	records, _ := MaterializeRecords(idx, negotiation, findings, models.EmptyAugmentation(), models.ModeSoft)

	filled := 0
	for _, r := range records {
		if r["rank"] != "" {
			filled++
		}
	}
	assert.GreaterOrEqual(t, filled, 3, "each card row receives its discoverable value")
}

func TestMaterialize_EmptyFindingsGiveNoRecords(t *testing.T) {
	idx := facultyIndex(t)

	negotiation := successNegotiation(
		models.FieldSpec{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
	)

	records, dropped := MaterializeRecords(idx, negotiation, models.NewFindings(), models.EmptyAugmentation(), models.ModeSoft)
	assert.Empty(t, records)
	assert.Zero(t, dropped)
}
