package driven

import (
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// entry — одно значение поля с привязкой к якорю
type entry struct {
	field    string
	value    string
	anchorID string
}

// MaterializeRecords собирает итоговые строки из финальной схемы.
// Хиты группируются в строки по общему контейнеру в DOM (префикс пути
// до первого расхождения). Strict-режим требует required + expected,
// soft — только required; не прошедшие строки отбрасываются.
func MaterializeRecords(
	idx *anchor.Index,
	negotiation *models.NegotiationResult,
	findings *models.Findings,
	aug *models.AugmentationResult,
	mode models.ContractMode,
) ([]models.Record, int) {
	rename := negotiation.Changes.Renamed
	finalByName := make(map[string]models.FieldSpec, len(negotiation.FinalFields))
	for _, f := range negotiation.FinalFields {
		finalByName[f.Name] = f
	}

	entries := collectEntries(idx, negotiation, findings, aug, rename, finalByName)
	if len(entries) == 0 {
		return []models.Record{}, 0
	}

	rows := groupIntoRows(idx, entries)

	// Фильтрация по режиму контракта
	var required, expected []string
	for _, f := range negotiation.FinalFields {
		switch f.Kind {
		case models.FieldRequired:
			required = append(required, f.Name)
		case models.FieldExpected:
			expected = append(expected, f.Name)
		}
	}

	records := make([]models.Record, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if !hasAll(row, required) {
			dropped++
			continue
		}
		if mode == models.ModeStrict && !hasAll(row, expected) {
			dropped++
			continue
		}
		records = append(records, row)
	}
	return records, dropped
}

// collectEntries сводит значения из обоих треков под финальными именами полей
func collectEntries(
	idx *anchor.Index,
	negotiation *models.NegotiationResult,
	findings *models.Findings,
	aug *models.AugmentationResult,
	rename map[string]string,
	finalByName map[string]models.FieldSpec,
) []entry {
	var entries []entry

	finalName := func(field string) string {
		if to, ok := rename[field]; ok {
			return to
		}
		return field
	}

	for _, h := range findings.Hits {
		name := finalName(h.Field)
		if _, ok := finalByName[name]; !ok {
			continue
		}
		entries = append(entries, entry{field: name, value: h.Value, anchorID: h.AnchorID})
	}

	for _, c := range aug.Completions {
		name := finalName(c.Field)
		if _, ok := finalByName[name]; !ok {
			continue
		}
		entries = append(entries, entry{field: name, value: c.Value, anchorID: c.Evidence.AnchorID})
	}

	// Discoverable-поля материализуются из превью их seed-якорей
	for _, f := range negotiation.FinalFields {
		if f.Kind != models.FieldDiscoverable {
			continue
		}
		for _, anchorID := range f.SeedAnchorIDs {
			a, ok := idx.Get(anchorID)
			if !ok || a.TextPreview == "" {
				continue
			}
			entries = append(entries, entry{field: f.Name, value: a.TextPreview, anchorID: anchorID})
		}
	}

	return entries
}

// groupIntoRows раскладывает значения по строкам. Ключ строки — префикс
// XPath якоря до глубины, на которой хиты самого плотного поля расходятся.
func groupIntoRows(idx *anchor.Index, entries []entry) []models.Record {
	// Самое плотное поле задает структуру строк
	perField := make(map[string][]entry)
	for _, e := range entries {
		perField[e.field] = append(perField[e.field], e)
	}

	densest := ""
	for field, es := range perField {
		if len(es) > len(perField[densest]) {
			densest = field
		}
	}

	if densest == "" || len(perField[densest]) <= 1 {
		// Одиночная страница: одна строка, первое значение каждого поля
		row := models.Record{}
		for field, es := range perField {
			if _, ok := row[field]; !ok {
				row[field] = es[0].value
			}
		}
		return []models.Record{row}
	}

	rowDepth := divergenceDepth(idx, perField[densest])

	rowKey := func(anchorID string) string {
		a, ok := idx.Get(anchorID)
		if !ok {
			return ""
		}
		segments := strings.Split(a.XPath, " > ")
		if len(segments) > rowDepth {
			segments = segments[:rowDepth]
		}
		return strings.Join(segments, " > ")
	}

	// Строки в document order по плотному полю
	var orderedKeys []string
	rows := make(map[string]models.Record)
	for _, e := range perField[densest] {
		key := rowKey(e.anchorID)
		if _, ok := rows[key]; !ok {
			rows[key] = models.Record{}
			orderedKeys = append(orderedKeys, key)
		}
		if _, ok := rows[key][e.field]; !ok {
			rows[key][e.field] = e.value
		}
	}

	for _, e := range entries {
		if e.field == densest {
			continue
		}
		key := rowKey(e.anchorID)
		row, ok := rows[key]
		if !ok {
			// Значение вне строчной структуры: отдаем первой строке, если поле свободно
			row = rows[orderedKeys[0]]
		}
		if _, exists := row[e.field]; !exists {
			row[e.field] = e.value
		}
	}

	result := make([]models.Record, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		result = append(result, rows[key])
	}
	return result
}

// divergenceDepth подбирает глубину ключа строки: минимальную, на которой
// пути якорей поля разделяются на максимум групп. Одиночный выброс
// (например, заголовок страницы среди карточек) не схлопывает строки.
func divergenceDepth(idx *anchor.Index, es []entry) int {
	paths := make([][]string, 0, len(es))
	maxLen := 0
	for _, e := range es {
		a, ok := idx.Get(e.anchorID)
		if !ok {
			continue
		}
		segments := strings.Split(a.XPath, " > ")
		paths = append(paths, segments)
		if len(segments) > maxLen {
			maxLen = len(segments)
		}
	}
	if len(paths) < 2 {
		return 1
	}

	bestDepth, bestGroups := 1, 1
	for depth := 1; depth <= maxLen; depth++ {
		seen := make(map[string]bool, len(paths))
		for _, p := range paths {
			d := depth
			if d > len(p) {
				d = len(p)
			}
			seen[strings.Join(p[:d], " > ")] = true
		}
		if len(seen) > bestGroups {
			bestGroups = len(seen)
			bestDepth = depth
		}
	}
	return bestDepth
}

func hasAll(row models.Record, fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(row[f]) == "" {
			return false
		}
	}
	return true
}
