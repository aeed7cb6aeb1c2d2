package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
)

// Предкомпилированные регулярки нормализации (hot path)
var (
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Атрибуты с таймстемпами и динамическими значениями: nonce, csrf,
	// cache-busting query в src/href
	timestampAttrRe = regexp.MustCompile(`(?i)\s(data-timestamp|data-ts|data-nonce|nonce|data-csrf)="[^"]*"`)
	cacheBustRe     = regexp.MustCompile(`(\?|&)(v|ver|t|ts|cb|_)=[0-9a-fA-F]+`)

	// Динамические суффиксы генерируемых id: "react-select-3271-input" и т.п.
	dynamicIDRe = regexp.MustCompile(`(?i)(id="[a-z-]+)-\d{2,}(")`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Fingerprint — SHA-256 от нормализованного DOM. Один и тот же контент
// с разными таймстемпами, nonce и пробелами дает один и тот же отпечаток.
func Fingerprint(html string) string {
	sum := sha256.Sum256([]byte(NormalizeHTML(html)))
	return hex.EncodeToString(sum[:])
}

// NormalizeHTML приводит разметку к канонической форме для хеширования:
// без скриптов, стилей, комментариев, динамических атрибутов и лишних пробелов.
func NormalizeHTML(html string) string {
	s := scriptRe.ReplaceAllString(html, "")
	s = styleRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = timestampAttrRe.ReplaceAllString(s, "")
	s = cacheBustRe.ReplaceAllString(s, "$1")
	s = dynamicIDRe.ReplaceAllString(s, "$1$2")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ToLower(s))
}

// RequestKey — ключ идемпотентности: канонический URL + нормализованный
// запрос + отпечаток контента. Повтор на неизменившейся странице дает
// тот же ключ.
func RequestKey(canonicalURL, query, fingerprint string) string {
	sum := sha256.Sum256([]byte(canonicalURL + "|" + utils.NormalizeQuery(query) + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// DetectContentType грубо классифицирует страницу для телеметрии.
// На решения pipeline не влияет — только метаданные.
func DetectContentType(html string) string {
	lower := strings.ToLower(html)
	switch {
	case strings.Count(lower, "<article") >= 3 || strings.Count(lower, "<li") >= 20:
		return "listing"
	case strings.Contains(lower, "<article"):
		return "article"
	case strings.Count(lower, "<table") >= 1 && strings.Count(lower, "<tr") >= 5:
		return "table"
	case strings.Contains(lower, "vcard") || strings.Contains(lower, "profile"):
		return "profile"
	default:
		return "unknown"
	}
}
