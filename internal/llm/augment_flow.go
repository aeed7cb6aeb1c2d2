package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/firebase/genkit/go/ai"
	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// AugmentRequest - input for the augmentation flow.
// The model never sees selectors: only anchor IDs with text previews.
type AugmentRequest struct {
	Contract            *models.Contract               `json:"contract"`
	Findings            *models.Findings               `json:"findings"`
	AnchorSample        map[string]models.AnchorSample `json:"anchor_sample"`
	MinSupportThreshold int                            `json:"min_support_threshold"`
}

// AugmentResponse - strict wire schema: exactly three top-level arrays,
// no additional properties. Mirrors the fixed response schema contract.
type AugmentResponse struct {
	Completions    []models.Completion       `json:"completions"`
	NewFields      []models.NewFieldProposal `json:"new_fields"`
	Normalizations []models.Normalization    `json:"normalizations"`
}

// AugmentFn is the narrow LLM port for Track B.
// Tests substitute a fake; production wires the genkit flow.
type AugmentFn func(ctx context.Context, req *AugmentRequest) (*AugmentResponse, error)

// DefineAugmentFlow creates the Track B Genkit flow
func DefineAugmentFlow(
	g *genkit.Genkit,
	modelName string,
) *genkitcore.Flow[*AugmentRequest, *AugmentResponse, struct{}] {
	return genkit.DefineFlow(
		g,
		"augmentFlow",
		func(ctx context.Context, req *AugmentRequest) (*AugmentResponse, error) {
			// Check context early
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled before augmentation: %w", err)
			}

			log.Printf("🔵 Augmenting %d misses with %d sampled anchors", len(req.Findings.Misses), len(req.AnchorSample))

			prompt := BuildAugmentPrompt(req)

			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled during augment prompt building: %w", err)
			}

			result, _, err := genkit.GenerateData[AugmentResponse](
				ctx,
				g,
				ai.WithModelName(modelName),
				ai.WithPrompt(prompt),
			)
			if err != nil {
				return nil, fmt.Errorf("augmentation LLM failed: %w", err)
			}

			log.Printf("✅ Augment complete: %d completions, %d new fields, %d normalizations",
				len(result.Completions), len(result.NewFields), len(result.Normalizations))
			return result, nil
		},
	)
}
