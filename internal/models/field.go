package models

// FieldKind определяет важность поля в контракте
type FieldKind string

const (
	FieldRequired     FieldKind = "required"
	FieldExpected     FieldKind = "expected"
	FieldOptional     FieldKind = "optional"
	FieldDiscoverable FieldKind = "discoverable"
)

// FieldType определяет тип значения поля
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeRichText FieldType = "richtext"
	TypeURL      FieldType = "url"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeEnum     FieldType = "enum"
	TypeArray    FieldType = "array"
	TypeImage    FieldType = "image"
	TypeBoolean  FieldType = "boolean"
)

// DetectorHint подсказывает, какой детектор строить для поля
type DetectorHint string

const (
	DetectorTitleLike       DetectorHint = "title_like"
	DetectorDescriptionLike DetectorHint = "description_like"
	DetectorLinkLike        DetectorHint = "link_like"
	DetectorGeneric         DetectorHint = "generic"
	// DetectorAnchorSet — детектор, построенный из anchor ID при promotion
	DetectorAnchorSet DetectorHint = "anchor_set"
)

// FieldSpec описывает одно поле контракта: как искать, извлекать и проверять
type FieldSpec struct {
	Name       string       `json:"name"`
	Kind       FieldKind    `json:"kind"`
	Type       FieldType    `json:"type"`
	Detector   DetectorHint `json:"detector"`
	Validators []string     `json:"validators,omitempty"`
	MinSupport int          `json:"min_support"`

	// SeedAnchorIDs заполняется только для discovery-полей:
	// anchor ID, из которых negotiator строит anchor_set-детектор.
	// Внутренняя улика: в сериализованный ответ не попадает.
	SeedAnchorIDs []string `json:"-"`

	// SeedSelectors — primary-селекторы seed-якорей, чтобы детектор
	// работал и на последующих загрузках той же страницы.
	// Тоже только для внутреннего прогона: наружу не отдаются.
	SeedSelectors []string `json:"-"`
}

// IsRequired проверяет, является ли поле обязательным
func (fs *FieldSpec) IsRequired() bool {
	return fs.Kind == FieldRequired
}

// GovernancePolicy определяет политику принятия новых полей
type GovernancePolicy string

const (
	PolicyEvidenceFirst GovernancePolicy = "evidence-first"
	PolicyStrict        GovernancePolicy = "strict"
)

// Governance задает правила управления схемой
type Governance struct {
	AllowNewFields       bool             `json:"allow_new_fields"`
	Policy               GovernancePolicy `json:"policy"`
	MinSupportThreshold  int              `json:"min_support_threshold"`
	MaxDiscoverableField int              `json:"max_discoverable_fields"`
}

// ContractMode определяет поведение при отсутствии значений
type ContractMode string

const (
	ModeStrict ContractMode = "strict"
	ModeSoft   ContractMode = "soft"
)

// Contract — типизированная схема с governance, созданная per request.
// После генерации контракт read-only.
type Contract struct {
	ID         string       `json:"id"`
	EntityName string       `json:"entity_name"`
	Fields     []FieldSpec  `json:"fields"`
	Governance Governance   `json:"governance"`
	Mode       ContractMode `json:"mode"`
}

// Field возвращает спецификацию поля по имени
func (c *Contract) Field(name string) (*FieldSpec, bool) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// RequiredFields возвращает список обязательных полей
func (c *Contract) RequiredFields() []FieldSpec {
	var required []FieldSpec
	for _, f := range c.Fields {
		if f.Kind == FieldRequired {
			required = append(required, f)
		}
	}
	return required
}

// DefaultGovernance возвращает governance по умолчанию
func DefaultGovernance() Governance {
	return Governance{
		AllowNewFields:       true,
		Policy:               PolicyEvidenceFirst,
		MinSupportThreshold:  3,
		MaxDiscoverableField: 5,
	}
}
