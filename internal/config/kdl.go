package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads the optional .graphindex.kdl file from projectRoot. A
// missing file is not an error: callers fall back to config.Default.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".graphindex.kdl")
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .graphindex.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}
	if cfg.Project.Root == "" {
		cfg.Project.Root = projectRoot
	}
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default(".", "")

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse .graphindex.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "chunking":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "chunk_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Chunking.ChunkSize = v
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Chunking.Workers = v
					}
				case "ready_queue_factor":
					if v, ok := firstIntArg(cn); ok {
						cfg.Chunking.ReadyQueueFactor = v
					}
				case "worker_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Chunking.WorkerTimeoutSec = v
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Store.BatchSize = v
					}
				case "vector_dimension":
					if v, ok := firstIntArg(cn); ok {
						cfg.Store.VectorDimension = v
					}
				case "query_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Store.QueryTimeoutSec = v
					}
				}
			}
		case "embedding":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "disabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Embedding.Disabled = b
					}
				case "char_budget":
					if v, ok := firstIntArg(cn); ok {
						cfg.Embedding.CharBudget = v
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				case "ring_buffer_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.RingBufferSize = v
					}
				}
			}
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, collectStringArgs(n)...)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func assignString(n *document.Node, target string, set func(string)) {
	if nodeName(n) != target {
		return
	}
	if s, ok := firstStringArg(n); ok {
		set(s)
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
