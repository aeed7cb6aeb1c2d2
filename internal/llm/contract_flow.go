package llm

import (
	"context"
	"fmt"
	"log"

	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
)

// ContractRequest - input for the contract negotiation flow.
type ContractRequest struct {
	Query         string `json:"query"`
	ContentSample string `json:"content_sample"`
}

// ContractField - one proposed field in the raw model output.
type ContractField struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// ContractResponse - raw model output before governance is attached.
// Abstain=true means the model could not produce a usable schema
// and the caller falls back to the template library.
type ContractResponse struct {
	EntityName string          `json:"entity_name"`
	Fields     []ContractField `json:"fields"`
	Abstain    bool            `json:"abstain"`
}

// ContractFn is the narrow LLM port for contract generation.
// Tests substitute a fake; production wires the genkit flow.
type ContractFn func(ctx context.Context, req *ContractRequest) (*ContractResponse, error)

// DefineContractFlow creates the contract generation Genkit flow
func DefineContractFlow(
	g *genkit.Genkit,
	modelName string,
) *genkitcore.Flow[*ContractRequest, *ContractResponse, struct{}] {
	return genkit.DefineFlow(
		g,
		"contractFlow",
		func(ctx context.Context, req *ContractRequest) (*ContractResponse, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled before contract generation: %w", err)
			}

			log.Printf("🔵 Generating contract for query: %s", truncate(req.Query, 120))

			prompt := BuildContractPrompt(req)

			result, _, err := genkit.GenerateData[ContractResponse](
				ctx,
				g,
				ai.WithModelName(modelName),
				ai.WithPrompt(prompt),
			)
			if err != nil {
				return nil, fmt.Errorf("contract LLM failed: %w", err)
			}

			if result.Abstain {
				log.Printf("⚪ Contract model abstained for query: %s", truncate(req.Query, 120))
			} else {
				log.Printf("✅ Contract generated: entity=%s fields=%d", result.EntityName, len(result.Fields))
			}
			return result, nil
		},
	)
}

// parseFieldKind maps raw model output to a FieldKind, defaulting to expected.
func parseFieldKind(s string) models.FieldKind {
	switch models.FieldKind(s) {
	case models.FieldRequired, models.FieldExpected, models.FieldOptional, models.FieldDiscoverable:
		return models.FieldKind(s)
	default:
		return models.FieldExpected
	}
}

// parseFieldType maps raw model output to a FieldType, defaulting to string.
func parseFieldType(s string) models.FieldType {
	switch models.FieldType(s) {
	case models.TypeString, models.TypeRichText, models.TypeURL, models.TypeEmail,
		models.TypePhone, models.TypeNumber, models.TypeDate, models.TypeEnum,
		models.TypeArray, models.TypeImage, models.TypeBoolean:
		return models.FieldType(s)
	default:
		return models.TypeString
	}
}
