package config

import (
	"fmt"

	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
)

// Validator validates a Config, then patches in smart defaults for the
// chunking, store, embedding and watch fields left at zero, mirroring the
// teacher's Validator split. Validation runs first, so a zero
// VectorDimension or RingBufferSize is rejected rather than defaulted.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProject(&cfg.Project); err != nil {
		return graphindexerrors.NewConfigError("project", err)
	}
	if err := v.validateChunking(&cfg.Chunking); err != nil {
		return graphindexerrors.NewConfigError("chunking", err)
	}
	if err := v.validateStore(&cfg.Store); err != nil {
		return graphindexerrors.NewConfigError("store", err)
	}
	if err := v.validateEmbedding(&cfg.Embedding); err != nil {
		return graphindexerrors.NewConfigError("embedding", err)
	}
	if err := v.validateWatch(&cfg.Watch); err != nil {
		return graphindexerrors.NewConfigError("watch", err)
	}
	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProject(p *Project) error {
	if p.Root == "" {
		return fmt.Errorf("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateChunking(c *Chunking) error {
	if c.ChunkSize < 0 {
		return fmt.Errorf("ChunkSize must be non-negative, got %d", c.ChunkSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

func (v *Validator) validateStore(s *Store) error {
	if s.VectorDimension <= 0 {
		return fmt.Errorf("VectorDimension must be positive, got %d", s.VectorDimension)
	}
	if s.RetryMax < 0 {
		return fmt.Errorf("RetryMax must be non-negative, got %d", s.RetryMax)
	}
	return nil
}

func (v *Validator) validateEmbedding(e *Embedding) error {
	if e.CharBudget < 0 {
		return fmt.Errorf("CharBudget must be non-negative, got %d", e.CharBudget)
	}
	return nil
}

func (v *Validator) validateWatch(w *Watch) error {
	if w.DebounceMs < 0 {
		return fmt.Errorf("DebounceMs must be non-negative, got %d", w.DebounceMs)
	}
	if w.RingBufferSize <= 0 {
		return fmt.Errorf("RingBufferSize must be positive, got %d", w.RingBufferSize)
	}
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 100
	}
	if cfg.Chunking.ReadyQueueFactor == 0 {
		cfg.Chunking.ReadyQueueFactor = 2
	}
	if cfg.Chunking.WorkerTimeoutSec == 0 {
		cfg.Chunking.WorkerTimeoutSec = 1800
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 500
	}
	if cfg.Store.VectorDimension == 0 {
		cfg.Store.VectorDimension = 3072
	}
	if cfg.Embedding.CharBudget == 0 {
		cfg.Embedding.CharBudget = 30000
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 1000
	}
	if cfg.Watch.RingBufferSize == 0 {
		cfg.Watch.RingBufferSize = 1000
	}
	if cfg.Watch.MaxWatchers == 0 {
		cfg.Watch.MaxWatchers = 10
	}
}
