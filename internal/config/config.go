// Package config holds the pipeline's typed configuration, its defaults,
// and its validator, following the teacher's Config/Validator split.
package config

import "runtime"

// Config is the top-level configuration for a single pipeline invocation.
type Config struct {
	Project     Project
	Chunking    Chunking
	Store       Store
	Embedding   Embedding
	Watch       Watch
	Exclude     []string // overrides the default exclude set of §6.7 when non-empty
}

type Project struct {
	Root string
	Name string
}

// Chunking governs the Parallel Chunked Coordinator (§4.7).
type Chunking struct {
	ChunkSize        int // default 100
	Workers          int // 0 = auto-detect min(CPUs-1, 8), clamped [1,16]
	ReadyQueueFactor int // in-flight chunk bound = ReadyQueueFactor * Workers, default 2
	WorkerTimeoutSec int // default 1800 (30 minutes)
}

// Store governs the Graph Importer's connection to the external graph store
// (§6.5, §5).
type Store struct {
	ConnectTimeoutSec int     // default 10
	QueryTimeoutSec   int     // default 30
	RetryBaseMs       int     // default 1000
	RetryCapMs        int     // default 30000
	RetryMax          int     // default 3
	BatchSize         int     // default 500, bounds per-transaction writes
	VectorDimension   int     // default 3072
}

// Embedding governs the embedding-service call shape (§3.3 invariant 6,
// §4.8).
type Embedding struct {
	Disabled         bool // must be explicit per §7
	CharBudget       int  // default 30000
	BatchSize        int  // default 64
}

// Watch governs the Watcher Bridge (§4.12).
type Watch struct {
	Enabled             bool
	DebounceMs          int // default 1000
	RingBufferSize      int // default 1000
	MaxWatchers         int // default 10
	ShutdownWaitSec     int // default 30
	SyncShutdownWaitSec int // default 5
}

// Default returns a Config populated with the spec's stated defaults.
func Default(root, name string) *Config {
	return &Config{
		Project: Project{Root: root, Name: name},
		Chunking: Chunking{
			ChunkSize:        100,
			Workers:          0,
			ReadyQueueFactor: 2,
			WorkerTimeoutSec: 1800,
		},
		Store: Store{
			ConnectTimeoutSec: 10,
			QueryTimeoutSec:   30,
			RetryBaseMs:       1000,
			RetryCapMs:        30000,
			RetryMax:          3,
			BatchSize:         500,
			VectorDimension:   3072,
		},
		Embedding: Embedding{
			Disabled:   false,
			CharBudget: 30000,
			BatchSize:  64,
		},
		Watch: Watch{
			Enabled:             false,
			DebounceMs:          1000,
			RingBufferSize:      1000,
			MaxWatchers:         10,
			ShutdownWaitSec:     30,
			SyncShutdownWaitSec: 5,
		},
	}
}

// ResolvedWorkers applies the §4.7 "N = min(CPUs-1, 8), clamped [1,16]" rule
// when Workers is left at its zero value.
func (c *Config) ResolvedWorkers() int {
	if c.Chunking.Workers > 0 {
		return clamp(c.Chunking.Workers, 1, 16)
	}
	n := runtime.NumCPU() - 1
	if n > 8 {
		n = 8
	}
	return clamp(n, 1, 16)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
