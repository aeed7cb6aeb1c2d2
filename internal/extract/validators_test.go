package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

func TestRunChain(t *testing.T) {
	tests := []struct {
		name      string
		fieldType models.FieldType
		value     string
		wantValid bool
	}{
		{"Valid email", models.TypeEmail, "j.smith@example.edu", true},
		{"Email missing domain", models.TypeEmail, "j.smith@", false},
		{"Email plain text", models.TypeEmail, "Jane Smith", false},
		{"Absolute URL", models.TypeURL, "https://example.com/page", true},
		{"Relative URL accepted", models.TypeURL, "/people/jane", true},
		{"URL with bad scheme", models.TypeURL, "javascript:alert(1)", false},
		{"Phone with formatting", models.TypePhone, "+1 (555) 123-4567", true},
		{"Phone too few digits", models.TypePhone, "12-34", false},
		{"Number with currency", models.TypeNumber, "$1,299.99", true},
		{"Number plain", models.TypeNumber, "42", true},
		{"Number words", models.TypeNumber, "forty two", false},
		{"ISO date", models.TypeDate, "2026-08-24", true},
		{"Human date", models.TypeDate, "August 24, 2026", true},
		{"Not a date", models.TypeDate, "sometime soon", false},
		{"Boolean yes", models.TypeBoolean, "yes", true},
		{"Boolean garbage", models.TypeBoolean, "maybe", false},
		{"Empty string", models.TypeString, "   ", false},
		{"Normal string", models.TypeString, "Professor", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := ValidatorChain(tt.fieldType)
			valid, conf, reason := RunChain(chain, tt.value)
			assert.Equal(t, tt.wantValid, valid, "reason: %s", reason)
			if valid {
				assert.Greater(t, conf, 0.0)
				assert.LessOrEqual(t, conf, 1.0)
			} else {
				assert.NotEmpty(t, reason, "rejection must carry a reason")
			}
		})
	}
}

func TestRunChain_RelativeURLLowerConfidence(t *testing.T) {
	chain := ValidatorChain(models.TypeURL)

	_, absConf, _ := RunChain(chain, "https://example.com/people/jane")
	_, relConf, _ := RunChain(chain, "/people/jane")

	assert.Greater(t, absConf, relConf, "relative URLs are accepted at lower confidence")
}

func TestValidatorChain_EmptyChainAccepts(t *testing.T) {
	valid, conf, reason := RunChain(nil, "anything")
	assert.True(t, valid)
	assert.Equal(t, 1.0, conf)
	assert.Empty(t, reason)
}
