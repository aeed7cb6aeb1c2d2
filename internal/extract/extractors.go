package extract

import (
	"net/url"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Extractor превращает DOM-элемент в значение. Чистая функция над элементом.
type Extractor interface {
	Extract(s *goquery.Selection) (value string, confidence float64)
}

// NewExtractor выбирает экстрактор по типу поля
func NewExtractor(fieldType models.FieldType) Extractor {
	switch fieldType {
	case models.TypeRichText:
		return &richTextExtractor{}
	case models.TypeURL:
		return &urlExtractor{attr: "href"}
	case models.TypeImage:
		return &urlExtractor{attr: "src"}
	case models.TypeEmail:
		return &emailExtractor{}
	default:
		return &textExtractor{}
	}
}

// ─────────────────────────────────────────────────────────────────────────────

// textExtractor — trimmed textContent со схлопнутыми пробелами
type textExtractor struct{}

func (e *textExtractor) Extract(s *goquery.Selection) (string, float64) {
	text := strings.Join(strings.Fields(s.Text()), " ")
	if text == "" {
		return "", 0
	}
	return text, 0.9
}

// richTextExtractor сохраняет переносы между блочными элементами
type richTextExtractor struct{}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
	"blockquote": true, "tr": true,
}

func (e *richTextExtractor) Extract(s *goquery.Selection) (string, float64) {
	var sb strings.Builder

	blocks := s.Find("p, li, blockquote, h1, h2, h3, h4")
	if blocks.Length() == 0 {
		// Нет блочной структуры — обычный текст
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return "", 0
		}
		return text, 0.8
	}

	blocks.Each(func(i int, block *goquery.Selection) {
		text := strings.Join(strings.Fields(block.Text()), " ")
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	})

	if sb.Len() == 0 {
		return "", 0
	}
	return sb.String(), 0.9
}

// urlExtractor — нормализация протокола, относительные URL принимаются
// с пониженной confidence 0.8 (см. DESIGN.md, Open Question 3)
type urlExtractor struct {
	attr string
}

func (e *urlExtractor) Extract(s *goquery.Selection) (string, float64) {
	raw, ok := s.Attr(e.attr)
	if !ok || raw == "" {
		// Fallback: URL текстом внутри элемента
		raw = strings.TrimSpace(s.Text())
		if raw == "" {
			return "", 0
		}
	}

	raw = strings.TrimSpace(raw)

	// Protocol-relative → https
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, 0.85
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", 0
	}

	if parsed.IsAbs() {
		return parsed.String(), 0.95
	}

	// Относительный URL: принимаем, но с меньшей уверенностью
	return raw, 0.8
}

// emailExtractor — mailto: ссылки и email текстом
type emailExtractor struct{}

func (e *emailExtractor) Extract(s *goquery.Selection) (string, float64) {
	if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "mailto:") {
		addr := strings.TrimPrefix(href, "mailto:")
		// mailto может нести query (?subject=...)
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return "", 0
		}
		return addr, 0.95
	}

	text := strings.TrimSpace(s.Text())
	if strings.Contains(text, "@") {
		return text, 0.7
	}
	return "", 0
}
