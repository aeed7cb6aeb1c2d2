package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// Validator принимает или отклоняет значение по правилам типа/формата.
// Чистая функция над значением.
type Validator interface {
	Name() string
	Validate(value string) (valid bool, confidence float64, reason string)
}

// Пакет-уровневые паттерны для оптимизации hot path
var (
	// emailPattern — RFC-shape, без полной грамматики RFC 5322
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// phonePattern — от 7 значащих цифр, допускает +, скобки, дефисы, пробелы
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-().]{7,20}$`)

	// datePattern — ISO и распространенные человекочитаемые формы
	datePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{2,4}|[A-Z][a-z]+ \d{1,2},? \d{4})`)
)

// ValidatorChain строит цепочку валидаторов для типа поля.
// Первый упавший валидатор убивает кандидата.
func ValidatorChain(fieldType models.FieldType) []Validator {
	chain := []Validator{&lengthValidator{min: 1, max: 5000}}

	switch fieldType {
	case models.TypeURL, models.TypeImage:
		chain = append(chain, &urlValidator{})
	case models.TypeEmail:
		chain = append(chain, &emailValidator{})
	case models.TypePhone:
		chain = append(chain, &phoneValidator{})
	case models.TypeNumber:
		chain = append(chain, &numberValidator{})
	case models.TypeDate:
		chain = append(chain, &dateValidator{})
	case models.TypeBoolean:
		chain = append(chain, &booleanValidator{})
	case models.TypeString:
		chain = append(chain, &lengthValidator{min: 1, max: 500})
	}

	return chain
}

// RunChain прогоняет значение через цепочку.
// Возвращает (accepted, средняя confidence валидаторов, причина отказа).
func RunChain(chain []Validator, value string) (bool, float64, string) {
	if len(chain) == 0 {
		return true, 1.0, ""
	}

	total := 0.0
	for _, v := range chain {
		valid, conf, reason := v.Validate(value)
		if !valid {
			return false, 0, v.Name() + ": " + reason
		}
		total += conf
	}

	return true, total / float64(len(chain)), ""
}

// ─────────────────────────────────────────────────────────────────────────────

type lengthValidator struct {
	min, max int
}

func (v *lengthValidator) Name() string { return "length" }

func (v *lengthValidator) Validate(value string) (bool, float64, string) {
	n := len(strings.TrimSpace(value))
	if n < v.min {
		return false, 0, "too short"
	}
	if n > v.max {
		return false, 0, "too long"
	}
	return true, 1.0, ""
}

type urlValidator struct{}

func (v *urlValidator) Name() string { return "url" }

func (v *urlValidator) Validate(value string) (bool, float64, string) {
	parsed, err := url.Parse(value)
	if err != nil {
		return false, 0, "unparseable URL"
	}
	if parsed.IsAbs() {
		if parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "ftp" {
			return false, 0, "unsupported scheme"
		}
		return true, 1.0, ""
	}
	// Относительный URL — валиден, но не идентификатор
	if strings.HasPrefix(value, "/") || strings.HasPrefix(value, "./") || strings.HasPrefix(value, "../") {
		return true, 0.8, ""
	}
	return false, 0, "neither absolute nor relative URL"
}

type emailValidator struct{}

func (v *emailValidator) Name() string { return "email" }

func (v *emailValidator) Validate(value string) (bool, float64, string) {
	if !emailPattern.MatchString(strings.TrimSpace(value)) {
		return false, 0, "not an email"
	}
	return true, 1.0, ""
}

type phoneValidator struct{}

func (v *phoneValidator) Name() string { return "phone" }

func (v *phoneValidator) Validate(value string) (bool, float64, string) {
	trimmed := strings.TrimSpace(value)
	if !phonePattern.MatchString(trimmed) {
		return false, 0, "not a phone number"
	}
	digits := 0
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		return false, 0, "too few digits"
	}
	return true, 0.9, ""
}

type numberValidator struct{}

func (v *numberValidator) Name() string { return "number" }

func (v *numberValidator) Validate(value string) (bool, float64, string) {
	cleaned := strings.NewReplacer(",", "", " ", "", "$", "", "€", "", "%", "").Replace(strings.TrimSpace(value))
	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return false, 0, "not numeric"
	}
	return true, 1.0, ""
}

type dateValidator struct{}

func (v *dateValidator) Name() string { return "date" }

func (v *dateValidator) Validate(value string) (bool, float64, string) {
	if !datePattern.MatchString(strings.TrimSpace(value)) {
		return false, 0, "not a recognizable date"
	}
	return true, 0.9, ""
}

type booleanValidator struct{}

func (v *booleanValidator) Name() string { return "boolean" }

func (v *booleanValidator) Validate(value string) (bool, float64, string) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "false", "yes", "no", "да", "нет", "1", "0":
		return true, 1.0, ""
	}
	return false, 0, "not a boolean"
}
