package utils

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Пакет-уровневые паттерны для оптимизации hot path.
// Компилируются один раз при запуске программы, а не при каждом вызове.
var (
	// trackingParamPattern — рекламные/аналитические query-параметры,
	// которые не влияют на содержимое страницы
	trackingParamPattern = regexp.MustCompile(`^(utm_[a-z]+|fbclid|gclid|msclkid|ref|source|_ga)$`)

	// multiSpacePattern — схлопывание пробелов в пользовательском запросе
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// CanonicalURL приводит URL к канонической форме для idempotency-ключа:
// lowercase scheme/host, без fragment, без trailing slash,
// без трекинговых параметров, оставшиеся query-параметры отсортированы.
func CanonicalURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL // Возвращаем как есть если не удалось распарсить
	}

	parsedURL.Fragment = ""
	parsedURL.Scheme = strings.ToLower(parsedURL.Scheme)
	parsedURL.Host = strings.ToLower(parsedURL.Host)

	// Убираем стандартные порты
	parsedURL.Host = strings.TrimSuffix(parsedURL.Host, ":80")
	if parsedURL.Scheme == "https" {
		parsedURL.Host = strings.TrimSuffix(parsedURL.Host, ":443")
	}

	path := parsedURL.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsedURL.Path = path

	// Фильтруем трекинговые параметры и сортируем остальные
	if parsedURL.RawQuery != "" {
		query := parsedURL.Query()
		keys := make([]string, 0, len(query))
		for key := range query {
			if trackingParamPattern.MatchString(strings.ToLower(key)) {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		rebuilt := url.Values{}
		for _, key := range keys {
			values := query[key]
			sort.Strings(values)
			for _, v := range values {
				rebuilt.Add(key, v)
			}
		}
		parsedURL.RawQuery = rebuilt.Encode()
	}

	return parsedURL.String()
}

// NormalizeQuery приводит пользовательский запрос к идемпотентной форме:
// lowercase, trim, одинарные пробелы. normalize(normalize(x)) = normalize(x).
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = multiSpacePattern.ReplaceAllString(normalized, " ")
	return normalized
}
