package llm

import (
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// contractTemplate — заготовка контракта для частых классов запросов.
// Используется при abstain модели и при выключенном LLM.
type contractTemplate struct {
	entityName string
	keywords   []string
	fields     []models.FieldSpec
}

// templateLibrary — порядок важен: первый совпавший шаблон выигрывает
var templateLibrary = []contractTemplate{
	{
		entityName: "person",
		keywords:   []string{"faculty", "professor", "staff", "people", "person", "team", "employee", "author", "speaker"},
		fields: []models.FieldSpec{
			{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
			{Name: "title", Kind: models.FieldExpected, Type: models.TypeString},
			{Name: "email", Kind: models.FieldExpected, Type: models.TypeEmail},
			{Name: "phone", Kind: models.FieldOptional, Type: models.TypePhone},
			{Name: "profile_url", Kind: models.FieldOptional, Type: models.TypeURL},
		},
	},
	{
		entityName: "product",
		keywords:   []string{"product", "item", "price", "shop", "catalog", "sku", "listing"},
		fields: []models.FieldSpec{
			{Name: "name", Kind: models.FieldRequired, Type: models.TypeString},
			{Name: "price", Kind: models.FieldExpected, Type: models.TypeNumber},
			{Name: "description", Kind: models.FieldOptional, Type: models.TypeRichText},
			{Name: "image", Kind: models.FieldOptional, Type: models.TypeImage},
			{Name: "url", Kind: models.FieldOptional, Type: models.TypeURL},
		},
	},
	{
		entityName: "article",
		keywords:   []string{"article", "post", "blog", "news", "story", "publication"},
		fields: []models.FieldSpec{
			{Name: "title", Kind: models.FieldRequired, Type: models.TypeString},
			{Name: "author", Kind: models.FieldExpected, Type: models.TypeString},
			{Name: "date", Kind: models.FieldExpected, Type: models.TypeDate},
			{Name: "summary", Kind: models.FieldOptional, Type: models.TypeRichText},
			{Name: "url", Kind: models.FieldOptional, Type: models.TypeURL},
		},
	},
	{
		entityName: "event",
		keywords:   []string{"event", "conference", "meetup", "schedule", "webinar", "workshop"},
		fields: []models.FieldSpec{
			{Name: "title", Kind: models.FieldRequired, Type: models.TypeString},
			{Name: "date", Kind: models.FieldExpected, Type: models.TypeDate},
			{Name: "location", Kind: models.FieldExpected, Type: models.TypeString},
			{Name: "description", Kind: models.FieldOptional, Type: models.TypeRichText},
		},
	},
	{
		entityName: "job_posting",
		keywords:   []string{"job", "vacancy", "career", "position", "hiring", "opening"},
		fields: []models.FieldSpec{
			{Name: "title", Kind: models.FieldRequired, Type: models.TypeString},
			{Name: "company", Kind: models.FieldExpected, Type: models.TypeString},
			{Name: "location", Kind: models.FieldExpected, Type: models.TypeString},
			{Name: "salary", Kind: models.FieldOptional, Type: models.TypeString},
			{Name: "url", Kind: models.FieldOptional, Type: models.TypeURL},
		},
	},
}

// MatchTemplate подбирает шаблон по ключевым словам запроса.
// Второй результат false — ни один шаблон не подошел.
func MatchTemplate(query string) (*contractTemplate, bool) {
	lower := strings.ToLower(query)
	for i := range templateLibrary {
		for _, kw := range templateLibrary[i].keywords {
			if strings.Contains(lower, kw) {
				return &templateLibrary[i], true
			}
		}
	}
	return nil, false
}

// MinimalTemplate — контракт последней надежды: одно required-поле title
// и открытый discovery. Гарантирует, что pipeline никогда не остается
// без контракта.
func MinimalTemplate() *contractTemplate {
	return &contractTemplate{
		entityName: "item",
		fields: []models.FieldSpec{
			{Name: "title", Kind: models.FieldRequired, Type: models.TypeString},
		},
	}
}
