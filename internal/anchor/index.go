package anchor

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
	"github.com/PuerkitoBio/goquery"
)

// Пакет-уровневые паттерны для оптимизации hot path
var (
	// volatileClassPattern — классы, сгенерированные CSS-in-JS и бандлерами.
	// Такие классы не дают стабильности селектору.
	volatileClassPattern = regexp.MustCompile(`^(css|jss|sc|emotion)-|[_-][0-9a-f]{5,}$|\d{4,}`)

	// skipTags — теги, которые никогда не индексируются
	skipTags = map[string]bool{
		"script": true, "style": true, "head": true,
		"meta": true, "link": true, "noscript": true,
		"title": true, "html": true,
	}

	// structuralTags — контейнеры без собственного текста, которые
	// индексируются только при наличии стабильных атрибутов
	structuralTags = map[string]bool{
		"div": true, "section": true, "article": true, "main": true,
		"body": true, "ul": true, "ol": true, "table": true,
		"tbody": true, "thead": true, "tr": true, "form": true,
	}
)

// Index — иммутабельная карта anchor ID → узел, с тремя inverted map'ами.
// Строится один раз per request, после чего read-only.
type Index struct {
	URL string

	anchors  map[string]*models.Anchor
	elements map[string]*goquery.Selection
	order    []string // anchor ID в document order

	bySelector map[string][]string
	byTextHash map[uint32][]string
	byXPath    map[string][]string
}

// Build строит индекс якорей по разобранному DOM.
// Ошибок нет: пустой или мусорный документ дает пустой индекс.
func Build(doc *goquery.Document, pageURL string, limiter *limits.ExtractionLimiter) *Index {
	idx := &Index{
		URL:        pageURL,
		anchors:    make(map[string]*models.Anchor),
		elements:   make(map[string]*goquery.Selection),
		order:      make([]string, 0),
		bySelector: make(map[string][]string),
		byTextHash: make(map[uint32][]string),
		byXPath:    make(map[string][]string),
	}

	if doc == nil {
		return idx
	}

	lims := limiter.GetLimits()
	visited := 0

	doc.Find("body *").Each(func(i int, s *goquery.Selection) {
		if visited >= lims.MaxTraversalNodes {
			return
		}
		visited++

		tag := goquery.NodeName(s)
		if skipTags[tag] {
			return
		}

		text := strings.TrimSpace(s.Text())
		if !acceptElement(s, tag, text) {
			return
		}

		a := idx.buildAnchor(doc, s, tag, text, lims.PreviewLength)
		idx.insert(a, s)
	})

	return idx
}

// acceptElement решает, содержит ли элемент контент, достойный якоря
func acceptElement(s *goquery.Selection, tag, text string) bool {
	if text != "" {
		return true
	}

	// Пустые структурные узлы берем только со стабильными атрибутами
	if structuralTags[tag] {
		if _, ok := s.Attr("id"); ok {
			return true
		}
		if _, ok := s.Attr("data-testid"); ok {
			return true
		}
		return false
	}

	// img/a без текста: интересны через атрибуты
	if tag == "img" {
		_, ok := s.Attr("src")
		return ok
	}
	if tag == "a" {
		_, ok := s.Attr("href")
		return ok
	}

	return false
}

// buildAnchor вычисляет все свойства якоря для одного элемента
func (idx *Index) buildAnchor(doc *goquery.Document, s *goquery.Selection, tag, text string, previewLen int) *models.Anchor {
	preview := utils.ClipString(text, previewLen)

	selectors := buildSelectorList(doc, s, tag)
	primary := selectors[0]

	xpath := buildPositionalPath(s)
	siblingIndex := s.Index()
	depth := s.Parents().Length()

	a := &models.Anchor{
		ID:              idx.assignID(s, text, tag, depth, siblingIndex),
		PrimarySelector: primary,
		Selectors:       selectors,
		Stability:       stabilityScore(s, text),
		TextPreview:     preview,
		ElementType:     tag,
		SiblingIndex:    siblingIndex,
		Depth:           depth,
		XPath:           xpath,
		TextHash:        TextHash(text),
		DocOrder:        len(idx.order),
	}

	return a
}

// assignID назначает непрозрачный ID по приоритету:
// стабильный атрибут > текст ⊕ структурная сигнатура > позиция.
// Инвариант: ID инъективен в рамках запроса (коллизии разводятся по DocOrder).
func (idx *Index) assignID(s *goquery.Selection, text, tag string, depth, siblingIndex int) string {
	var key string

	if id, ok := s.Attr("id"); ok && id != "" {
		key = "attr|" + id
	} else if testID, ok := s.Attr("data-testid"); ok && testID != "" {
		key = "attr|" + testID
	} else if name, ok := s.Attr("name"); ok && name != "" {
		key = "attr|" + name
	} else if text != "" {
		key = "text|" + utils.ClipString(text, 200) + "|" + structuralSignature(s, tag)
	} else {
		key = fmt.Sprintf("pos|%s|%d|%d", tag, depth, siblingIndex)
	}

	id := fmt.Sprintf("n_%d", hash32(key))
	if _, exists := idx.anchors[id]; exists {
		// Коллизия: два узла с одинаковым текстом и сигнатурой. Разводим позицией.
		id = fmt.Sprintf("n_%d_%d", hash32(key), len(idx.order))
	}
	return id
}

// structuralSignature — путь тегов от корня до элемента, без позиций
func structuralSignature(s *goquery.Selection, tag string) string {
	parts := []string{tag}
	s.Parents().Each(func(i int, p *goquery.Selection) {
		parts = append(parts, goquery.NodeName(p))
	})
	return strings.Join(parts, ">")
}

// stabilityScore: база 0.5, бонусы за устойчивые признаки, clamp до 1.0
func stabilityScore(s *goquery.Selection, text string) float64 {
	score := 0.5

	if id, ok := s.Attr("id"); ok && id != "" {
		score += 0.3
	}

	if class, ok := s.Attr("class"); ok && class != "" {
		if hasStableClass(class) {
			score += 0.2
		}
	}

	if hasDataAttr(s) {
		score += 0.2
	}

	if text != "" {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func hasStableClass(classAttr string) bool {
	for _, c := range strings.Fields(classAttr) {
		if !volatileClassPattern.MatchString(c) {
			return true
		}
	}
	return false
}

func hasDataAttr(s *goquery.Selection) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	for _, attr := range s.Nodes[0].Attr {
		if strings.HasPrefix(attr.Key, "data-") {
			return true
		}
	}
	return false
}

// insert добавляет якорь во все карты, сохраняя document order
func (idx *Index) insert(a *models.Anchor, s *goquery.Selection) {
	idx.anchors[a.ID] = a
	idx.elements[a.ID] = s
	idx.order = append(idx.order, a.ID)

	// Инвариант: primary selector всегда обратно отображается на свой ID
	for _, sel := range a.Selectors {
		idx.bySelector[sel] = append(idx.bySelector[sel], a.ID)
	}
	if a.TextPreview != "" {
		idx.byTextHash[a.TextHash] = append(idx.byTextHash[a.TextHash], a.ID)
	}
	idx.byXPath[a.XPath] = append(idx.byXPath[a.XPath], a.ID)
}

// Get возвращает якорь по ID
func (idx *Index) Get(id string) (*models.Anchor, bool) {
	a, ok := idx.anchors[id]
	return a, ok
}

// PrimarySelector возвращает основной селектор якоря
func (idx *Index) PrimarySelector(id string) (string, bool) {
	a, ok := idx.anchors[id]
	if !ok {
		return "", false
	}
	return a.PrimarySelector, true
}

// Element возвращает ссылку на DOM-элемент якоря
func (idx *Index) Element(id string) (*goquery.Selection, bool) {
	s, ok := idx.elements[id]
	return s, ok
}

// BySelector возвращает ID якорей с данным селектором
func (idx *Index) BySelector(selector string) []string {
	return idx.bySelector[selector]
}

// ByTextHash возвращает ID якорей с данным text hash
func (idx *Index) ByTextHash(h uint32) []string {
	return idx.byTextHash[h]
}

// ByXPath возвращает ID якорей с данным позиционным путем
func (idx *Index) ByXPath(xpath string) []string {
	return idx.byXPath[xpath]
}

// Len возвращает количество якорей
func (idx *Index) Len() int {
	return len(idx.anchors)
}

// Anchors возвращает якоря в document order
func (idx *Index) Anchors() []*models.Anchor {
	result := make([]*models.Anchor, 0, len(idx.order))
	for _, id := range idx.order {
		result = append(result, idx.anchors[id])
	}
	return result
}

// AnchorForElement находит якорь для произвольного DOM-элемента
// через позиционный путь. Используется Track A для цитирования anchor ID.
func (idx *Index) AnchorForElement(s *goquery.Selection) (*models.Anchor, bool) {
	ids := idx.byXPath[buildPositionalPath(s)]
	if len(ids) == 0 {
		return nil, false
	}
	return idx.anchors[ids[0]], true
}

// TextHash — 32-битный хеш trimmed текста (обрезается до 200 символов до хеширования)
func TextHash(text string) uint32 {
	return hash32(utils.ClipString(strings.TrimSpace(text), 200))
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
