package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExtractionLimits(t *testing.T) {
	limits := DefaultExtractionLimits()

	assert.Equal(t, 5000, limits.MaxTraversalNodes, "Default MaxTraversalNodes should be 5000")
	assert.Equal(t, 10, limits.MaxCandidatesField, "Default MaxCandidatesField should be 10")
	assert.Equal(t, 5, limits.MaxDiscoverable, "Default MaxDiscoverable should be 5")
	assert.Equal(t, 5, limits.AnchorSampleSize, "Default AnchorSampleSize should be 5")
	assert.Equal(t, 200, limits.PreviewLength, "Default PreviewLength should be 200")
	assert.Equal(t, 100, limits.PromptPreviewLength, "Default PromptPreviewLength should be 100")
	assert.Equal(t, 3, limits.MinPatternInstances, "Default MinPatternInstances should be 3")
	assert.Equal(t, 20, limits.MaxPatternCandidates, "Default MaxPatternCandidates should be 20")
}

func TestNewExtractionLimiter(t *testing.T) {
	limiter := NewExtractionLimiter(nil)
	require.NotNil(t, limiter, "Limiter should not be nil")
	require.NotNil(t, limiter.limits, "Limits should not be nil")

	customLimits := &ExtractionLimits{
		MaxTraversalNodes:    1000,
		MaxCandidatesField:   5,
		MaxDiscoverable:      3,
		AnchorSampleSize:     10,
		PreviewLength:        100,
		PromptPreviewLength:  50,
		MinPatternInstances:  2,
		MaxPatternCandidates: 10,
	}

	limiter = NewExtractionLimiter(customLimits)
	require.NotNil(t, limiter)
	assert.Equal(t, customLimits.MaxTraversalNodes, limiter.GetLimits().MaxTraversalNodes)
}

func TestExtractionLimiter_UpdateLimits(t *testing.T) {
	limiter := NewExtractionLimiter(nil)

	validLimits := &ExtractionLimits{
		MaxTraversalNodes:    2000,
		MaxCandidatesField:   20,
		MaxDiscoverable:      10,
		AnchorSampleSize:     8,
		PreviewLength:        150,
		PromptPreviewLength:  80,
		MinPatternInstances:  4,
		MaxPatternCandidates: 15,
	}

	err := limiter.UpdateLimits(validLimits)
	assert.NoError(t, err, "Valid limits should be updated without error")
	assert.Equal(t, validLimits.MaxTraversalNodes, limiter.GetLimits().MaxTraversalNodes)

	// Test invalid limits
	invalidLimits := &ExtractionLimits{
		MaxTraversalNodes: -1, // Invalid
	}

	err = limiter.UpdateLimits(invalidLimits)
	assert.Error(t, err, "Invalid limits should return error")
	assert.Contains(t, err.Error(), "MaxTraversalNodes must be positive")
}

func TestExtractionLimiter_ValidateLimits(t *testing.T) {
	limiter := NewExtractionLimiter(nil)

	// Valid limits
	err := limiter.ValidateLimits()
	assert.NoError(t, err, "Default limits should be valid")

	// Test limits that are too large
	invalidLimits := &ExtractionLimits{
		MaxTraversalNodes:    200000, // Too large
		MaxCandidatesField:   10,
		MaxDiscoverable:      5,
		AnchorSampleSize:     5,
		PreviewLength:        200,
		PromptPreviewLength:  100,
		MinPatternInstances:  3,
		MaxPatternCandidates: 20,
	}

	limiter.limits = invalidLimits
	err = limiter.ValidateLimits()
	assert.Error(t, err, "Too large limits should return error")
	assert.Contains(t, err.Error(), "MaxTraversalNodes too large")
}

func TestExtractionLimiter_GetMemoryUsage(t *testing.T) {
	limiter := NewExtractionLimiter(nil)
	memoryUsage := limiter.GetMemoryUsage()

	assert.Greater(t, memoryUsage, int64(0), "Memory usage should be positive")
	assert.Greater(t, memoryUsage, int64(1000), "Memory usage should be at least 1KB")
}
