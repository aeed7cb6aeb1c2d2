package anchor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// buildSelectorList строит список селекторов по убыванию стабильности:
// id > data-testid/name > комбинация классов > nth-of-type путь.
// Каждый кандидат проверяется на уникальность, где это возможно.
func buildSelectorList(doc *goquery.Document, s *goquery.Selection, tag string) []string {
	var selectors []string

	if id, ok := s.Attr("id"); ok && id != "" && isSafeToken(id) {
		sel := "#" + id
		if isUnique(doc, sel) {
			selectors = append(selectors, sel)
		}
	}

	if testID, ok := s.Attr("data-testid"); ok && testID != "" && isSafeToken(testID) {
		sel := fmt.Sprintf(`%s[data-testid="%s"]`, tag, testID)
		if isUnique(doc, sel) {
			selectors = append(selectors, sel)
		}
	}

	if name, ok := s.Attr("name"); ok && name != "" && isSafeToken(name) {
		sel := fmt.Sprintf(`%s[name="%s"]`, tag, name)
		if isUnique(doc, sel) {
			selectors = append(selectors, sel)
		}
	}

	if class, ok := s.Attr("class"); ok && class != "" {
		if sel := classSelector(tag, class); sel != "" {
			// Классовый селектор не обязан быть уникальным: он задает группу
			selectors = append(selectors, sel)
		}
	}

	// Позиционный путь — безусловный fallback, уникален по построению
	selectors = append(selectors, nthOfTypePath(s))

	return selectors
}

// classSelector строит селектор из стабильных классов (максимум двух)
func classSelector(tag, classAttr string) string {
	var stable []string
	for _, c := range strings.Fields(classAttr) {
		if !volatileClassPattern.MatchString(c) && isSafeToken(c) {
			stable = append(stable, c)
		}
		if len(stable) == 2 {
			break
		}
	}
	if len(stable) == 0 {
		return ""
	}
	return tag + "." + strings.Join(stable, ".")
}

// nthOfTypePath строит полный путь вида body > div:nth-of-type(2) > h3:nth-of-type(1)
func nthOfTypePath(s *goquery.Selection) string {
	var parts []string

	current := s
	for current.Length() > 0 {
		tag := goquery.NodeName(current)
		if tag == "body" || tag == "html" || tag == "" {
			break
		}

		nth := 1
		prev := current.PrevAll()
		prev.Each(func(i int, sib *goquery.Selection) {
			if goquery.NodeName(sib) == tag {
				nth++
			}
		})

		parts = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", tag, nth)}, parts...)
		current = current.Parent()
	}

	return "body > " + strings.Join(parts, " > ")
}

// buildPositionalPath — путь для xpath-индекса (тот же nth-of-type формат)
func buildPositionalPath(s *goquery.Selection) string {
	return nthOfTypePath(s)
}

func isUnique(doc *goquery.Document, selector string) bool {
	return doc.Find(selector).Length() == 1
}

// isSafeToken отсекает значения атрибутов, ломающие CSS-селектор
func isSafeToken(v string) bool {
	return !strings.ContainsAny(v, ` "'>:()[]{}/\,`)
}
