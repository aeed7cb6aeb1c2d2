package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Candidate — один элемент-кандидат, предложенный детектором
type Candidate struct {
	Element    *goquery.Selection
	Selector   string
	Confidence float64
}

// Detector предлагает элементы-кандидаты для именованного поля.
// Детекторы чистые над DOM: не мутируют документ и не держат состояния.
type Detector interface {
	Detect(doc *goquery.Document) []Candidate
}

// Пакет-уровневые паттерны для оптимизации hot path
var (
	// negativePattern — контейнеры, в которых контент почти никогда не лежит
	negativePattern = regexp.MustCompile(`(?i)(nav|menu|breadcrumb|footer|sidebar|cookie|banner|popup)`)

	// volatileAttrPattern повторяет anchor: классы от бандлеров бесполезны
	namePartPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// NewDetector строит детектор по имени и типу поля.
// Выбор без цепочек наследования: конструктор на каждый вид.
func NewDetector(spec models.FieldSpec) Detector {
	switch spec.Detector {
	case models.DetectorTitleLike:
		return &titleDetector{fieldName: spec.Name}
	case models.DetectorDescriptionLike:
		return &descriptionDetector{fieldName: spec.Name}
	case models.DetectorLinkLike:
		return &linkDetector{fieldName: spec.Name, fieldType: spec.Type}
	case models.DetectorAnchorSet:
		return &anchorSetDetector{selectors: spec.SeedSelectors}
	default:
		return &genericDetector{fieldName: spec.Name, fieldType: spec.Type}
	}
}

// HintForField выводит подсказку детектора из имени и типа поля
func HintForField(name string, fieldType models.FieldType) models.DetectorHint {
	lower := strings.ToLower(name)

	switch fieldType {
	case models.TypeURL, models.TypeEmail, models.TypeImage:
		return models.DetectorLinkLike
	case models.TypeRichText:
		return models.DetectorDescriptionLike
	}

	switch {
	case containsAny(lower, "name", "title", "heading", "label"):
		return models.DetectorTitleLike
	case containsAny(lower, "description", "summary", "bio", "about", "body", "text"):
		return models.DetectorDescriptionLike
	case containsAny(lower, "link", "url", "email", "site", "href", "image", "photo"):
		return models.DetectorLinkLike
	}

	return models.DetectorGeneric
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// title-like: заголовки, имена, подписи
// ─────────────────────────────────────────────────────────────────────────────

type titleDetector struct {
	fieldName string
}

func (d *titleDetector) Detect(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	// Селекторы по убыванию приоритета
	strategies := []struct {
		selector string
		base     float64
	}{
		{classSelectorFor(d.fieldName), 0.9},
		{"h1", 0.85},
		{"h2", 0.8},
		{"h3", 0.75},
		{"strong", 0.6},
		{"b", 0.55},
		{"[itemprop=name]", 0.85},
	}

	for _, strat := range strategies {
		if strat.selector == "" {
			continue
		}
		collect(doc, strat.selector, strat.base, &candidates)
	}

	return rankCandidates(candidates, 10, 120)
}

// ─────────────────────────────────────────────────────────────────────────────
// description-like: абзацы, аннотации
// ─────────────────────────────────────────────────────────────────────────────

type descriptionDetector struct {
	fieldName string
}

func (d *descriptionDetector) Detect(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	strategies := []struct {
		selector string
		base     float64
	}{
		{classSelectorFor(d.fieldName), 0.9},
		{"p", 0.6},
		{"blockquote", 0.55},
		{"[itemprop=description]", 0.85},
	}

	for _, strat := range strategies {
		if strat.selector == "" {
			continue
		}
		collect(doc, strat.selector, strat.base, &candidates)
	}

	return rankCandidates(candidates, 10, 2000)
}

// ─────────────────────────────────────────────────────────────────────────────
// link-like: ссылки, email, изображения
// ─────────────────────────────────────────────────────────────────────────────

type linkDetector struct {
	fieldName string
	fieldType models.FieldType
}

func (d *linkDetector) Detect(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	switch d.fieldType {
	case models.TypeEmail:
		collect(doc, `a[href^="mailto:"]`, 0.95, &candidates)
		collect(doc, classSelectorFor(d.fieldName), 0.7, &candidates)
	case models.TypeImage:
		collect(doc, "img[src]", 0.7, &candidates)
	default:
		collect(doc, classSelectorFor(d.fieldName), 0.8, &candidates)
		collect(doc, "a[href]", 0.6, &candidates)
	}

	return rankCandidates(candidates, 15, 300)
}

// ─────────────────────────────────────────────────────────────────────────────
// generic: поиск по классам/атрибутам, производным от имени поля
// ─────────────────────────────────────────────────────────────────────────────

type genericDetector struct {
	fieldName string
	fieldType models.FieldType
}

func (d *genericDetector) Detect(doc *goquery.Document) []Candidate {
	var candidates []Candidate

	if sel := classSelectorFor(d.fieldName); sel != "" {
		collect(doc, sel, 0.85, &candidates)
	}
	if sel := attrSelectorFor(d.fieldName); sel != "" {
		collect(doc, sel, 0.8, &candidates)
	}

	// dt/dd пары: ищем label с именем поля, берем следующий dd
	doc.Find("dt").Each(func(i int, dt *goquery.Selection) {
		if matchesFieldName(dt.Text(), d.fieldName) {
			dd := dt.Next()
			if goquery.NodeName(dd) == "dd" {
				candidates = append(candidates, Candidate{
					Element:    dd,
					Selector:   "dt + dd",
					Confidence: 0.85,
				})
			}
		}
	})

	return rankCandidates(candidates, 10, 500)
}

// ─────────────────────────────────────────────────────────────────────────────
// anchor-set: детектор, построенный negotiator'ом из цитированных селекторов
// ─────────────────────────────────────────────────────────────────────────────

type anchorSetDetector struct {
	selectors []string
}

func (d *anchorSetDetector) Detect(doc *goquery.Document) []Candidate {
	var candidates []Candidate
	for _, sel := range d.selectors {
		collect(doc, sel, 0.8, &candidates)
	}
	return rankCandidates(candidates, 20, 500)
}

// ─────────────────────────────────────────────────────────────────────────────
// общие помощники
// ─────────────────────────────────────────────────────────────────────────────

// collect добавляет все совпадения селектора как кандидатов
func collect(doc *goquery.Document, selector string, base float64, out *[]Candidate) {
	if selector == "" {
		return
	}
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		*out = append(*out, Candidate{
			Element:    s,
			Selector:   selector,
			Confidence: base,
		})
	})
}

// classSelectorFor строит классовый селектор из имени поля:
// "research_area" → ".research-area, .research_area"
func classSelectorFor(fieldName string) string {
	token := strings.ToLower(strings.TrimSpace(fieldName))
	if token == "" {
		return ""
	}
	kebab := namePartPattern.ReplaceAllString(token, "-")
	snake := namePartPattern.ReplaceAllString(token, "_")
	if kebab == snake {
		return "." + kebab
	}
	return fmt.Sprintf(".%s, .%s", kebab, snake)
}

func attrSelectorFor(fieldName string) string {
	token := namePartPattern.ReplaceAllString(strings.ToLower(fieldName), "-")
	if token == "" {
		return ""
	}
	return fmt.Sprintf(`[itemprop=%s], [data-field="%s"]`, token, token)
}

func matchesFieldName(label, fieldName string) bool {
	clean := func(s string) string {
		return namePartPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	}
	return clean(label) == clean(fieldName)
}

// rankCandidates упорядочивает кандидатов: приоритет селектора,
// bias по тегу, окно длины контента, штраф за negative-паттерны
func rankCandidates(candidates []Candidate, limit int, lengthWindow int) []Candidate {
	scored := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		score := c.Confidence

		// Tag bias: заголовки и ссылки — плюс, навигация — минус
		switch goquery.NodeName(c.Element) {
		case "h1", "h2", "h3":
			score += 0.05
		case "strong", "a":
			score += 0.03
		}

		// Negative-паттерн: сам элемент или его предки
		if inNegativeContainer(c.Element) {
			score -= 0.4
		}

		// Content-length sanity window
		textLen := len(strings.TrimSpace(c.Element.Text()))
		if textLen > lengthWindow*3 {
			score -= 0.2
		}

		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}

		c.Confidence = score
		scored = append(scored, c)
	}

	// Сортировка по убыванию confidence, стабильная (document order внутри равных)
	for i := 0; i < len(scored)-1; i++ {
		for j := i + 1; j < len(scored); j++ {
			if scored[i].Confidence < scored[j].Confidence {
				scored[i], scored[j] = scored[j], scored[i]
			}
		}
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func inNegativeContainer(s *goquery.Selection) bool {
	if selectionMatchesNegative(s) {
		return true
	}
	matched := false
	s.Parents().EachWithBreak(func(i int, p *goquery.Selection) bool {
		if selectionMatchesNegative(p) {
			matched = true
			return false
		}
		return true
	})
	return matched
}

func selectionMatchesNegative(s *goquery.Selection) bool {
	tag := goquery.NodeName(s)
	if tag == "nav" || tag == "footer" || tag == "aside" {
		return true
	}
	if class, ok := s.Attr("class"); ok && negativePattern.MatchString(class) {
		return true
	}
	if id, ok := s.Attr("id"); ok && negativePattern.MatchString(id) {
		return true
	}
	return false
}
