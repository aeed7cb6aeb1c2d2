package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Budgets   BudgetConfig    `yaml:"budgets"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "gemini" или "generic"
	Model    string `yaml:"model"`
	ApiKey   string `yaml:"apiKey"`

	// AugmenterEnabled выключает Track B целиком (pipeline работает на Track A)
	AugmenterEnabled bool `yaml:"augmenterEnabled"`

	Port string `yaml:"port"`
}

// PipelineConfig — перечислимая поверхность настроек ядра.
// Неявных дефолтов вне этого списка нет.
type PipelineConfig struct {
	ConfidenceThreshold float64       `yaml:"confidenceThreshold"` // порог принятия кандидата
	MaxCandidates       int           `yaml:"maxCandidates"`       // cap кандидатов на поле
	MinPatternInstances int           `yaml:"minPatternInstances"` // минимум повторов паттерна
	DOMTraversalLimit   int           `yaml:"domTraversalLimit"`   // лимит обхода DOM
	AnchorValidation    bool          `yaml:"anchorValidation"`    // round-trip валидация on/off
	AnchorSampleSize    int           `yaml:"anchorSampleSize"`    // размер выборки для LLM
	IdempotencyTTL      time.Duration `yaml:"idempotencyTtl"`
}

type TelemetryConfig struct {
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	RedactPII     bool          `yaml:"redactPii"`
	// SamplingRates — доля событий по типам, 0.0–1.0
	SamplingRates map[string]float64 `yaml:"samplingRates"`
}

// BudgetConfig — бюджеты стадий: токены и миллисекунды
type BudgetConfig struct {
	ContractTokens      int `yaml:"contractTokens"`
	ContractMillis      int `yaml:"contractMillis"`
	AugmentTokens       int `yaml:"augmentTokens"`
	AugmentMillis       int `yaml:"augmentMillis"`
	ValidationTokens    int `yaml:"validationTokens"`
	ValidationMillis    int `yaml:"validationMillis"`
	NegotiationTokens   int `yaml:"negotiationTokens"`
	NegotiationMillis   int `yaml:"negotiationMillis"`
	DeterministicMillis int `yaml:"deterministicMillis"`
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func Load() (*Config, error) {
	// .env опционален: в проде конфиг приходит из окружения
	_ = godotenv.Load()

	provider := getEnvOrDefault("LLM_PROVIDER", "gemini")
	model := os.Getenv("LLM_MODEL")
	augmenterEnabled := getEnvBool("AUGMENTER_ENABLED", true)

	// Validate required fields: модель нужна, только если LLM-трек включен
	if augmenterEnabled && model == "" {
		return nil, errors.New("LLM_MODEL environment variable is required when AUGMENTER_ENABLED=true")
	}

	return &Config{
		LLM: LLMConfig{
			Provider:         provider,
			Model:            model,
			ApiKey:           os.Getenv("API_KEY"),
			AugmenterEnabled: augmenterEnabled,
			Port:             getEnvOrDefault("PORT", "8090"),
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.6),
			MaxCandidates:       getEnvInt("MAX_CANDIDATES", 10),
			MinPatternInstances: getEnvInt("MIN_PATTERN_INSTANCES", 3),
			DOMTraversalLimit:   getEnvInt("DOM_TRAVERSAL_LIMIT", 5000),
			AnchorValidation:    getEnvBool("ANCHOR_VALIDATION", true),
			AnchorSampleSize:    getEnvInt("ANCHOR_SAMPLE_SIZE", 5),
			IdempotencyTTL:      time.Duration(getEnvInt("IDEMPOTENCY_TTL_SECONDS", 900)) * time.Second,
		},
		Telemetry: TelemetryConfig{
			BatchSize:     getEnvInt("TELEMETRY_BATCH_SIZE", 50),
			FlushInterval: time.Duration(getEnvInt("TELEMETRY_FLUSH_MS", 2000)) * time.Millisecond,
			RedactPII:     getEnvBool("TELEMETRY_REDACT_PII", true),
			SamplingRates: map[string]float64{},
		},
		Budgets: BudgetConfig{
			ContractTokens:      getEnvInt("BUDGET_CONTRACT_TOKENS", 500),
			ContractMillis:      getEnvInt("BUDGET_CONTRACT_MS", 800),
			AugmentTokens:       getEnvInt("BUDGET_AUGMENT_TOKENS", 400),
			AugmentMillis:       getEnvInt("BUDGET_AUGMENT_MS", 1200),
			ValidationTokens:    getEnvInt("BUDGET_VALIDATION_TOKENS", 100),
			ValidationMillis:    getEnvInt("BUDGET_VALIDATION_MS", 600),
			NegotiationTokens:   getEnvInt("BUDGET_NEGOTIATION_TOKENS", 300),
			NegotiationMillis:   getEnvInt("BUDGET_NEGOTIATION_MS", 1000),
			DeterministicMillis: getEnvInt("BUDGET_DETERMINISTIC_MS", 500),
		},
	}, nil
}
