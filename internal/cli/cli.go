// Package cli implements the gearlayout command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/internal/config"
	"github.com/matzehuels/gearlayout/pkg/buildinfo"
	"github.com/matzehuels/gearlayout/pkg/cache"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
	"github.com/matzehuels/gearlayout/pkg/storage"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "gearlayout"

	// redisKeyPrefix namespaces cache keys in a shared Redis.
	redisKeyPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	configFile string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Gearlayout positions gears by relaxing distance constraints",
		Long: `Gearlayout is a CLI tool for laying out gear trains and other circle
arrangements. Entities are moved until every centre distance constraint
holds, then the result can be rendered or stored.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: "+filepath.Join(config.ConfigDir(), "config.yaml")+")")

	// Register all subcommands
	root.AddCommand(c.solveCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.stepCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.capabilitiesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.mcpCommand())
	root.AddCommand(c.completionCommand())
	c.registerCompletions(root)

	return root
}

// loadConfig reads the config file and environment. A level raised to debug
// by --verbose is kept.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	c.Config = cfg
	if c.Logger.GetLevel() != log.DebugLevel {
		if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
			c.Logger.SetLevel(level)
		}
	}
	return nil
}

// config returns the loaded configuration, or the defaults when commands run
// without the root pre-run hook.
func (c *CLI) config() *config.Config {
	if c.Config == nil {
		c.Config = config.Default()
	}
	return c.Config
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg := c.config().Cache
	ch, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewDefaultKeyer()
	if cfg.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Prefix)
	}
	runner := pipeline.NewRunner(ch, keyer, c.Logger)
	runner.TTL = cfg.TTL
	return runner, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "memory":
		return cache.NewMemoryCache(cfg.MemorySize)
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		})
	default:
		return cache.NewFileCache(cfg.Dir)
	}
}

// openStore opens the configured layout store. It returns a nil Store when
// storage is disabled.
func (c *CLI) openStore(ctx context.Context) (storage.Store, error) {
	cfg := c.config().Storage
	if cfg.Backend == storage.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return storage.Open(ctx, storage.Config{
		Backend:       cfg.Backend,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
}

// =============================================================================
// Options Helpers
// =============================================================================

// baseOptions returns pipeline options seeded from the solver config.
func (c *CLI) baseOptions() pipeline.Options {
	s := c.config().Solver
	return pipeline.Options{
		MaxIterations:  s.MaxIterations,
		Tolerance:      s.Tolerance,
		StepSize:       s.StepSize,
		MinDistance:    s.MinDistance,
		Strict:         s.Strict,
		MaxEntities:    s.MaxEntities,
		MaxConstraints: s.MaxConstraints,
		Logger:         componentLogger(c.Logger, "solver"),
	}
}

// solverFlags are the per-invocation overrides shared by solve, render,
// step and watch.
type solverFlags struct {
	maxIterations int
	tolerance     float64
	stepSize      float64
	strict        bool
}

func (f *solverFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "maximum relaxation sweeps (default from config)")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 0, "convergence threshold on the summed residual")
	cmd.Flags().Float64Var(&f.stepSize, "step-size", 0, "fraction of each residual applied per sweep")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail on constraints that reference unknown entities")
}

func (f solverFlags) apply(opts *pipeline.Options) {
	if f.maxIterations > 0 {
		opts.MaxIterations = f.maxIterations
	}
	if f.tolerance > 0 {
		opts.Tolerance = f.tolerance
	}
	if f.stepSize > 0 {
		opts.StepSize = f.stepSize
	}
	opts.Strict = opts.Strict || f.strict
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	return strings.Split(s, ",")
}
