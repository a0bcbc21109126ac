// Command graphindex is the CLI front-end for the extraction and
// synchronization pipeline: parse a project into the graph store, check on
// an async job, or watch a project for incremental re-parsing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/graphindex/internal/config"
	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/embed/openaiembed"
	"github.com/standardbeagle/graphindex/internal/embedding"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/jobstore"
	"github.com/standardbeagle/graphindex/internal/pipeline"
	"github.com/standardbeagle/graphindex/internal/progress"
	"github.com/standardbeagle/graphindex/internal/store/neo4jstore"
)

var log = debug.Component("cli")

func main() {
	app := &cli.App{
		Name:                   "graphindex",
		Usage:                  "schema-driven graph extraction and synchronization for source trees",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "project root directory to index",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "project name, used only when no .graphindex.kdl is found",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "additional exclude glob patterns (extends the defaults)",
			},
			&cli.StringFlag{
				Name:  "neo4j-uri",
				Usage: "Neo4j bolt URI",
				Value: "bolt://localhost:7687",
			},
			&cli.StringFlag{
				Name:  "neo4j-user",
				Usage: "Neo4j username",
				Value: "neo4j",
			},
			&cli.StringFlag{
				Name:   "neo4j-password",
				Usage:  "Neo4j password",
				EnvVars: []string{"GRAPHINDEX_NEO4J_PASSWORD"},
			},
			&cli.StringFlag{
				Name:  "neo4j-database",
				Usage: "Neo4j database name",
				Value: "neo4j",
			},
			&cli.BoolFlag{
				Name:  "mem-store",
				Usage: "use an in-memory store instead of Neo4j (dry runs, tests)",
			},
			&cli.BoolFlag{
				Name:  "no-embed",
				Usage: "disable embedding calls, overriding config",
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				EnvVars: []string{"OPENAI_API_KEY"},
				Usage:   "API key for the embedding service",
			},
			&cli.StringFlag{
				Name:  "job-store",
				Usage: "path to the badger job-tracking database (empty = in-memory)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Aliases: []string{"v"},
				Usage: "enable debug-level tracing",
			},
		},
		Commands: []*cli.Command{
			parseCommand(),
			statusCommand(),
			watchCommand(),
		},
		Before: func(c *cli.Context) error {
			debug.Enable(c.Bool("verbose"))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "graphindex: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads .graphindex.kdl from root, falling back to config.Default,
// then applies CLI overrides and validator defaults (mirrors the teacher's
// loadConfigWithOverrides).
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, "", fmt.Errorf("resolving root: %w", err)
	}

	cfg, err := config.LoadKDL(root)
	if err != nil {
		return nil, "", err
	}
	if cfg == nil {
		name := c.String("name")
		if name == "" {
			name = filepath.Base(root)
		}
		cfg = config.Default(root, name)
	}
	cfg.Project.Root = root

	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Exclude = append(cfg.EffectiveExcludes(), excludes...)
	}
	if c.Bool("no-embed") {
		cfg.Embedding.Disabled = true
	}

	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// buildPipeline wires a Pipeline from CLI flags: the graph store (Neo4j or
// in-memory), the embedder, an optional job store, and a Reporter feeding a
// phase-transitioning progress bar.
func buildPipeline(c *cli.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	var closers []func()

	var store graphstore.Store
	if c.Bool("mem-store") {
		store = graphstore.NewMemStore()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Store.ConnectTimeoutSec)*time.Second)
		defer cancel()
		s, err := neo4jstore.Open(ctx, c.String("neo4j-uri"), c.String("neo4j-user"), c.String("neo4j-password"),
			c.String("neo4j-database"),
			time.Duration(cfg.Store.ConnectTimeoutSec)*time.Second,
			time.Duration(cfg.Store.QueryTimeoutSec)*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to neo4j: %w", err)
		}
		store = s
	}
	closers = append(closers, func() { _ = store.Close(context.Background()) })

	var embedder embedding.Service = embedding.Disabled{}
	if !cfg.Embedding.Disabled {
		apiKey := c.String("openai-api-key")
		if apiKey == "" {
			log.Warn("embedding enabled but no OPENAI_API_KEY set, falling back to disabled embedder")
		} else {
			embedder = openaiembed.New(apiKey)
		}
	}

	var jobs *jobstore.Store
	if path := c.String("job-store"); path != "" || c.Bool("async") {
		js, err := jobstore.Open(path, jobstore.Options{})
		if err != nil {
			return nil, nil, fmt.Errorf("opening job store: %w", err)
		}
		jobs = js
		closers = append(closers, func() { _ = js.Close() })
	}

	metrics := progress.NewMetrics(prometheus.NewRegistry())
	reporter := progress.NewReporter(metrics)
	stopBar := attachProgressBar(reporter)
	closers = append(closers, stopBar)

	p := pipeline.New(cfg, store, embedder, jobs, reporter)
	closers = append(closers, func() { _ = p.Close(context.Background()) })

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return p, cleanup, nil
}

// attachProgressBar subscribes a phase-transitioning progressbar.ProgressBar
// to the Reporter's event channel: a fresh bar is started on every phase
// change and Set64 is called on every update within a phase.
func attachProgressBar(reporter *progress.Reporter) func() {
	sub := reporter.Subscribe()
	done := make(chan struct{})

	go func() {
		var bar *progressbar.ProgressBar
		var currentPhase progress.Phase
		for ev := range sub {
			if ev.Phase != currentPhase {
				if bar != nil {
					_ = bar.Finish()
				}
				currentPhase = ev.Phase
				bar = progressbar.NewOptions(ev.Total,
					progressbar.OptionSetDescription(color.CyanString(phaseDescription(ev.Phase))),
					progressbar.OptionSetWidth(30),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			if bar != nil {
				_ = bar.ChangeMax(ev.Total)
				_ = bar.Set64(int64(ev.Current))
			}
		}
		close(done)
	}()

	return func() {
		<-done
	}
}

func phaseDescription(phase progress.Phase) string {
	switch phase {
	case progress.PhaseDiscovery:
		return "Discovering files"
	case progress.PhaseParsing:
		return "Parsing"
	case progress.PhaseImporting:
		return "Importing into graph store"
	case progress.PhaseResolving:
		return "Resolving cross-file references"
	case progress.PhaseComplete:
		return "Complete"
	case progress.PhaseFailed:
		return "Failed"
	default:
		return string(phase)
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "parse a project into the graph store",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "delete the project's existing graph before parsing"},
			&cli.BoolFlag{Name: "async", Usage: "run in the background and print a job ID"},
			&cli.BoolFlag{Name: "watch", Usage: "start watching the project for changes after parsing"},
			&cli.IntFlag{Name: "chunk-size", Usage: "override the configured chunk size (0 = use config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfig(c)
			if err != nil {
				return err
			}
			p, cleanup, err := buildPipeline(c, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := pipeline.ParseOptions{
				ClearExisting: c.Bool("clear"),
				ChunkSize:     c.Int("chunk-size"),
				WatchAfter:    c.Bool("watch"),
			}

			ctx := context.Background()
			if c.Bool("async") {
				id, err := p.ParseAsync(ctx, root, opts)
				if err != nil {
					return err
				}
				fmt.Printf("jobId: %s\n", id)
				return nil
			}

			result, err := p.Parse(ctx, root, opts)
			if err != nil {
				return err
			}
			printResult(result)
			if opts.WatchAfter {
				fmt.Println("watching for changes, press Ctrl+C to stop")
				waitForSignal()
			}
			return nil
		},
	}
}

func printResult(result pipeline.Result) {
	fmt.Printf("project:  %s\n", result.ProjectID)
	fmt.Printf("files:    %d\n", result.FilesProcessed)
	fmt.Printf("chunks:   %d\n", result.ChunksProcessed)
	fmt.Printf("nodes:    %d\n", result.NodesCreated)
	fmt.Printf("edges:    %d\n", result.EdgesCreated)
	fmt.Printf("elapsed:  %s\n", result.Elapsed)
	if len(result.ParseErrors) > 0 {
		color.Yellow("%d error(s) during parse:\n", len(result.ParseErrors))
		for _, e := range result.ParseErrors {
			fmt.Printf("  - %v\n", e)
		}
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show an async job's status",
		ArgsUsage: "<jobId>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("usage: graphindex status <jobId>")
			}
			path := c.String("job-store")
			jobs, err := jobstore.Open(path, jobstore.Options{})
			if err != nil {
				return fmt.Errorf("opening job store: %w", err)
			}
			defer jobs.Close()

			job, found, err := jobs.Get(c.Args().First())
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no such job: %s", c.Args().First())
			}

			fmt.Printf("phase:           %s\n", job.Phase)
			fmt.Printf("status:          %s\n", job.Status)
			fmt.Printf("filesProcessed:  %d\n", job.FilesProcessed)
			fmt.Printf("chunksProcessed: %d\n", job.ChunksProcessed)
			fmt.Printf("nodesCreated:    %d\n", job.NodesCreated)
			fmt.Printf("edgesCreated:    %d\n", job.EdgesCreated)
			fmt.Printf("elapsedMs:       %d\n", job.Elapsed().Milliseconds())
			if job.Error != "" {
				fmt.Printf("error:           %s\n", job.Error)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "watch an already-parsed project and re-parse on change, without an initial full parse",
		Action: func(c *cli.Context) error {
			cfg, root, err := loadConfig(c)
			if err != nil {
				return err
			}
			p, cleanup, err := buildPipeline(c, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			projectID := identity.ProjectID(root)
			if _, err := p.Watch(projectID, root); err != nil {
				return err
			}
			fmt.Printf("watching %s (project %s), press Ctrl+C to stop\n", root, projectID)
			waitForSignal()
			return nil
		},
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
