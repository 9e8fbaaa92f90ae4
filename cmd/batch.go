package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/treepress/internal/ingest"
)

var batchWorkers int

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Parallel runs (default from config)")
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch [source-dir] [output-dir]",
	Short: "Compress every supported file under a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if batchWorkers > 0 {
			cfg.Workers = batchWorkers
		}
		engine := ingest.NewEngine(cfg, newLogger(cmd.ErrOrStderr()))
		results, err := engine.CompressDir(cmd.Context(), osfs.New(args[0]), osfs.New(args[1]), ".")
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tLANG\tIN\tOUT\tRATIO\tREFS")
		var in, out int64
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%d\n", r.Path, r.Language, r.InBytes, r.OutBytes, r.Ratio(), r.Stats.Refs())
			in += r.InBytes
			out += int64(r.OutBytes)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d files, %d -> %d bytes\n", len(results), in, out)
		return nil
	},
}
