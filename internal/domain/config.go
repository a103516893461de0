package domain

import (
	"fmt"
	"time"
)

// Pipeline defaults.
const (
	DefaultChunkSize             = 1000
	DefaultChunkOverlap          = 200
	DefaultTopK                  = 4
	DefaultJudgeFailureThreshold = 0.5
	DefaultFanoutLimit           = 4
	DefaultTimeout               = 120 * time.Second
)

// PipelineConfig holds the tunables of a single pipeline run.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int

	// Synthesis re-chunks the relevant fragments at its own granularity.
	SynthesisChunkSize    int
	SynthesisChunkOverlap int
	SynthesisTopK         int

	// JudgeFailureThreshold is the maximum tolerated share of failed judgments (0..1).
	JudgeFailureThreshold float64
	FanoutLimit           int
	// Timeout bounds the whole run. Zero means no pipeline-level deadline.
	Timeout time.Duration
}

// DefaultPipelineConfig returns the defaults used by the interactive app.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize:             DefaultChunkSize,
		ChunkOverlap:          DefaultChunkOverlap,
		TopK:                  DefaultTopK,
		SynthesisChunkSize:    DefaultChunkSize,
		SynthesisChunkOverlap: DefaultChunkOverlap,
		SynthesisTopK:         DefaultTopK,
		JudgeFailureThreshold: DefaultJudgeFailureThreshold,
		FanoutLimit:           DefaultFanoutLimit,
		Timeout:               DefaultTimeout,
	}
}

// WithDefaults fills zero values. Overlap is left as is since zero is valid.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.SynthesisChunkSize == 0 {
		c.SynthesisChunkSize = c.ChunkSize
		if c.SynthesisChunkOverlap == 0 {
			c.SynthesisChunkOverlap = c.ChunkOverlap
		}
	}
	if c.SynthesisTopK <= 0 {
		c.SynthesisTopK = c.TopK
	}
	if c.FanoutLimit <= 0 {
		c.FanoutLimit = DefaultFanoutLimit
	}
	return c
}

// Validate checks chunking bounds and the remaining tunables.
func (c PipelineConfig) Validate() error {
	if err := ValidateChunking(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if err := ValidateChunking(c.SynthesisChunkSize, c.SynthesisChunkOverlap); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	if c.JudgeFailureThreshold < 0 || c.JudgeFailureThreshold > 1 {
		return fmt.Errorf("judge failure threshold must be within [0, 1], got %v", c.JudgeFailureThreshold)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// ValidateChunking enforces max_size > 0 and 0 <= overlap < max_size.
func ValidateChunking(maxSize, overlap int) error {
	if maxSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d: %w", maxSize, ErrChunking)
	}
	if overlap < 0 || overlap >= maxSize {
		return fmt.Errorf("chunk overlap must be within [0, %d), got %d: %w", maxSize, overlap, ErrChunking)
	}
	return nil
}
