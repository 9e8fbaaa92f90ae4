package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treepress/internal/ingest"
	"github.com/agentic-research/treepress/internal/press"
	"github.com/agentic-research/treepress/internal/report"
)

var (
	compressOut    string
	compressReport string
	compressDump   bool
	compressStats  bool
)

func init() {
	compressCmd.Flags().StringVarP(&compressOut, "output", "o", "", "Output file (default <input>.tp)")
	compressCmd.Flags().StringVar(&compressReport, "report", "", "Record every emitted node into this SQLite database")
	compressCmd.Flags().BoolVar(&compressDump, "dump", false, "Print the record listing")
	compressCmd.Flags().BoolVar(&compressStats, "stats", false, "Print run statistics")
	rootCmd.AddCommand(compressCmd)
}

var compressCmd = &cobra.Command{
	Use:   "compress [input]",
	Short: "Lift a source or JSON file and compress its tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := loadInput(cmd.Context(), input, cfg)
		if err != nil {
			return err
		}

		opts := press.Options{
			Cache:  cfg.Cache(),
			Logger: newLogger(cmd.ErrOrStderr()),
		}
		var rep *report.Writer
		if compressReport != "" {
			if rep, err = report.Open(compressReport); err != nil {
				return err
			}
			defer func() { _ = rep.Close() }()
			if err := rep.BeginRun(input); err != nil {
				return err
			}
			opts.Sink = rep
		}

		run := press.NewRun(opts)
		data, err := run.Compress(root)
		if err != nil {
			return err
		}
		if rep != nil {
			if err := rep.FinishRun(run.Stats()); err != nil {
				return fmt.Errorf("finish report: %w", err)
			}
		}

		out := compressOut
		if out == "" {
			out = input + ingest.OutputExt
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if compressDump {
			if err := run.Encoder().Dump(w); err != nil {
				return err
			}
		}
		if compressStats {
			if err := run.Stats().Print(w); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}
