package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/treepress/api"
	"github.com/agentic-research/treepress/internal/ast"
	"github.com/agentic-research/treepress/internal/codec"
	"github.com/agentic-research/treepress/internal/ingest"
)

var (
	configPath string
	verbose    bool
	language   string
	selector   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a .hcl or .json config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every encoding decision")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "Input language, overriding the file extension")
	rootCmd.PersistentFlags().StringVar(&selector, "select", "", "JSONPath applied to JSON input before lifting")
}

var rootCmd = &cobra.Command{
	Use:           "treepress",
	Short:         "treepress: structural compression for syntax trees",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file (if any) with command-line overrides.
func loadConfig() (api.Config, error) {
	cfg := api.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = api.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if language != "" {
		cfg.Language = language
	}
	if selector != "" {
		cfg.Select = selector
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadInput lifts a source file, or decodes it when it is already a
// compressed stream.
func loadInput(ctx context.Context, path string, cfg api.Config) (*ast.Node, error) {
	if filepath.Ext(path) == ingest.OutputExt {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return codec.Decode(data)
	}
	fs := osfs.New(filepath.Dir(path))
	return ingest.LoadTree(ctx, fs, filepath.Base(path), cfg)
}
