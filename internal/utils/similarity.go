package utils

import (
	"strings"
	"unicode"
)

// Similarity вычисляет сходство строк (0.0 - 1.0) для round-trip валидации.
// Порядок проверок: exact match > substring > нормализованный Levenshtein.
func Similarity(s1, s2 string) float64 {
	// Early return: exact match
	if s1 == s2 {
		return 1.0
	}

	n1 := normalizeForComparison(s1)
	n2 := normalizeForComparison(s2)

	if n1 == n2 {
		return 1.0
	}

	// Early return: one is empty
	if len(n1) == 0 || len(n2) == 0 {
		return 0.0
	}

	// Substring: короткая строка целиком содержится в длинной
	if strings.Contains(n1, n2) || strings.Contains(n2, n1) {
		shorter := len(n1)
		longer := len(n2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		// Доля покрытия, но не ниже 0.85: точное вхождение — сильный сигнал
		ratio := float64(shorter) / float64(longer)
		if ratio < 0.85 {
			return 0.85
		}
		return ratio
	}

	dist := levenshtein(n1, n2)
	maxLen := len(n1)
	if len(n2) > maxLen {
		maxLen = len(n2)
	}

	return 1.0 - float64(dist)/float64(maxLen)
}

// normalizeForComparison приводит строку к виду для сравнения:
// lowercase, схлопнутые пробелы, без пунктуации по краям
func normalizeForComparison(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r)
	})
}

// levenshtein вычисляет редакционное расстояние по байтам.
// Две строки вместо полной матрицы: хватает предыдущей строки.
func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)

	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// TruncateString обрезает строку до указанной длины с многоточием.
// Только для человекочитаемого вывода: результат длиннее maxLen.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ClipString жестко обрезает строку до maxLen байт, без суффикса.
// Для превью и хеш-ключей, где длина — контрактная граница.
func ClipString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
