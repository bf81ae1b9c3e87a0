// Command haystack is the CLI for the haystack indexing service.
//
// Usage:
//
//	haystack serve --config config.yaml
//	haystack ingest ./docs --recursive
//	haystack backup --dir ./backups
//	haystack restore ./backups/backup_haystack_mcp_20250101_120000
//	haystack audit --source ./docs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Dhana009/haystack/pkg/auth"
	"github.com/Dhana009/haystack/pkg/backup"
	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/observability"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/server"
	"github.com/Dhana009/haystack/pkg/verify"
	"github.com/Dhana009/haystack/pkg/watcher"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the MCP tool server."`
	Ingest  IngestCmd  `cmd:"" help:"Ingest a file or directory into the store."`
	Backup  BackupCmd  `cmd:"" help:"Create or list local backups."`
	Restore RestoreCmd `cmd:"" help:"Restore a collection from a local backup."`
	Verify  VerifyCmd  `cmd:"" help:"Verify document quality for a category."`
	Audit   AuditCmd   `cmd:"" help:"Audit storage integrity against a source directory."`
	Stats   StatsCmd   `cmd:"" help:"Show collection statistics."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("haystack version %s\n", server.Version())
	return nil
}

// rootContext returns a context cancelled by SIGINT or SIGTERM.
func rootContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Get().Info("shutting down")
		cancel()
	}()
	return ctx, cancel
}

// buildPipeline loads configuration and brings up the pipeline:
// store connection, collection and index assertion, embedder warmup.
func buildPipeline(ctx context.Context, cli *CLI) (*config.Config, *pipeline.PipelineContext, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.NewPipelineContext(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, p, nil
}

// printJSON renders a result for the terminal.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ServeCmd starts the MCP tool server.
type ServeCmd struct {
	Transport string `help:"Transport: stdio or http (overrides config)."`
	Host      string `help:"HTTP listen host (overrides config)."`
	Port      int    `help:"HTTP listen port (overrides config)." default:"0"`
	Watch     string `help:"Source directory to watch for incremental re-indexing." type:"path"`
	Observe   bool   `help:"Enable metrics and tracing."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Transport != "" {
		cfg.Server.Transport = c.Transport
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Watch != "" {
		cfg.Watcher.Enabled = true
		cfg.Watcher.Directory = c.Watch
	}
	if c.Observe {
		cfg.Observability.MetricsEnabled = true
		cfg.Observability.TracingEnabled = true
	}

	obs := observability.NoopManager()
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		obs = observability.NewManager(observability.Config{
			Tracing: observability.TracerConfig{
				Enabled:     cfg.Observability.TracingEnabled,
				Endpoint:    cfg.Observability.OTLPEndpoint,
				ServiceName: cfg.Observability.ServiceName,
			},
			Metrics: observability.MetricsConfig{
				Enabled: cfg.Observability.MetricsEnabled,
			},
		})
		if err := obs.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
	}

	p, err := pipeline.NewPipelineContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	p.Observer = obs.GetMetrics()

	if cfg.Watcher.Enabled {
		w, err := watcher.New(p, watcher.Config{
			Dir:      cfg.Watcher.Directory,
			Debounce: time.Duration(cfg.Watcher.DebounceSec) * time.Second,
			Include:  cfg.Watcher.Extensions,
			Exclude:  cfg.Watcher.Exclude,
		})
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	opts := []server.Option{server.WithObservability(obs)}
	if cfg.Server.Auth.Enabled {
		validator, err := auth.NewValidatorFromConfig(cfg.Server.Auth)
		if err != nil {
			return fmt.Errorf("failed to configure auth: %w", err)
		}
		opts = append(opts, server.WithAuthValidator(validator))
	}

	srv, err := server.New(cfg, p, opts...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// IngestCmd ingests one file or a directory tree.
type IngestCmd struct {
	Path     string   `arg:"" help:"File or directory to ingest." type:"path"`
	Code     bool     `help:"Treat files as code (code embedder and collection)."`
	Category string   `help:"Metadata category." default:"other"`
	Tags     []string `help:"Tags stamped onto the ingested documents."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	meta := map[string]any{"category": c.Category}
	if len(c.Tags) > 0 {
		meta["tags"] = c.Tags
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if !c.Code {
			return fmt.Errorf("directory ingestion is code-only; pass --code")
		}
		res, err := p.AddCodeDirectory(ctx, c.Path, nil, nil, meta)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	var res *pipeline.Result
	if c.Code {
		res, err = p.AddCode(ctx, c.Path, "", meta)
	} else {
		res, err = p.AddFile(ctx, c.Path, meta)
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

// BackupCmd creates a backup, or lists the existing ones.
type BackupCmd struct {
	Dir               string `help:"Backup directory." default:"./backups" type:"path"`
	IncludeEmbeddings bool   `help:"Include embedding vectors in the backup."`
	SkipCode          bool   `help:"Back up only the documentation collection."`
	List              bool   `help:"List existing backups instead of creating one."`
}

func (c *BackupCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	if c.List {
		res, err := backup.List(c.Dir)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := backup.Create(ctx, p, backup.CreateOptions{
		Dir:               c.Dir,
		IncludeEmbeddings: c.IncludeEmbeddings,
		IncludeCode:       !c.SkipCode,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

// RestoreCmd restores a backup directory into the store.
type RestoreCmd struct {
	Path       string `arg:"" help:"Backup directory to restore." type:"path"`
	Policy     string `help:"Duplicate policy: skip, update, or error." enum:"skip,update,error" default:"skip"`
	SkipVerify bool   `help:"Skip the post-restore sample verification."`
}

func (c *RestoreCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := backup.Restore(ctx, p, c.Path, backup.RestoreOptions{
		Policy:           c.Policy,
		SkipVerification: c.SkipVerify,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

// VerifyCmd verifies every stored document in a category.
type VerifyCmd struct {
	Category string `arg:"" help:"Category to verify (e.g. user_rule)."`
	Limit    int    `help:"Cap on how many documents are verified." default:"0"`
}

func (c *VerifyCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := verify.Category(ctx, p, c.Category, c.Limit)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// AuditCmd audits the stored documents, optionally against a source
// directory.
type AuditCmd struct {
	Source     string   `help:"Source directory to compare against." type:"path"`
	Extensions []string `help:"File extensions scanned in the source directory."`
	Flat       bool     `help:"Scan only the source directory's top level."`
}

func (c *AuditCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := verify.Audit(ctx, p, c.Source, !c.Flat, c.Extensions)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// StatsCmd prints collection statistics.
type StatsCmd struct {
	Metadata bool     `help:"Aggregate metadata value histograms instead of counts."`
	GroupBy  []string `help:"Metadata fields to group by." default:"category,status,source"`
}

func (c *StatsCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	_, p, err := buildPipeline(ctx, cli)
	if err != nil {
		return err
	}
	defer p.Close()

	if c.Metadata {
		res, err := p.MetadataStats(ctx, pipeline.ContentTypeDocs, filter.Node(nil), c.GroupBy)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	res, err := p.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("haystack"),
		kong.Description("Content-addressed document indexing over a vector store."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := kctx.Run(cli); err != nil {
		logger.Get().Error("command failed", "error", err)
		cleanup()
		os.Exit(1)
	}
}
