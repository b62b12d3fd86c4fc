package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/config"
	"github.com/danielwarnersmith/trace/internal/midi"
	"github.com/danielwarnersmith/trace/internal/pending"
	"github.com/danielwarnersmith/trace/internal/schema"
	"github.com/danielwarnersmith/trace/internal/session"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// logger carries diagnostics to stderr. Command results go to stdout.
var logger = slog.Default()

// schemas is the compiled-schema cache shared by every command in one run.
var schemas *schema.Cache

var verbose bool

// errReported marks a failure whose details were already printed.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:           "trace",
	Short:         "Record, annotate and audit capture sessions on disk",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)

		level := slog.LevelInfo
		if verbose || cfg.Verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		if cfg.SchemaDir != "" {
			schemas = schema.NewCache(os.DirFS(cfg.SchemaDir))
		} else {
			schemas = schema.NewEmbeddedCache()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug diagnostics to stderr")
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error: "+err.Error())
		}
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func sessionOptions() []session.Option {
	return []session.Option{session.WithSchemas(schemas)}
}

func openSession(path string) (*session.Dir, error) {
	return session.Open(path, sessionOptions()...)
}

func openQueue() (*pending.Queue, error) {
	return pending.Open(cfg.QueueDir,
		pending.WithLogger(logger),
		pending.WithSessionOptions(sessionOptions()...),
	)
}

func categoryMap() (*midi.CategoryMap, error) {
	if cfg.MIDICategories == "" {
		return midi.DefaultCategoryMap(), nil
	}
	return midi.LoadCategoryMap(cfg.MIDICategories)
}

// withDefaultTags prepends the configured default tags.
func withDefaultTags(tags []string) []string {
	if len(cfg.DefaultTags) == 0 {
		return tags
	}
	out := make([]string, 0, len(cfg.DefaultTags)+len(tags))
	out = append(out, cfg.DefaultTags...)
	return append(out, tags...)
}

// optionalMS returns a pointer to v when the flag was given.
func optionalMS(cmd *cobra.Command, name string, v int64) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
