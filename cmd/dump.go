package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/treepress/internal/debug"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(typesCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump [input]",
	Short: "Print the lifted tree, one node per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := loadInput(cmd.Context(), args[0], cfg)
		if err != nil {
			return err
		}
		return debug.Dump(cmd.OutOrStdout(), root)
	},
}

var typesCmd = &cobra.Command{
	Use:   "types [input]",
	Short: "List subtrees grouped by type, most frequent first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := loadInput(cmd.Context(), args[0], cfg)
		if err != nil {
			return err
		}
		return debug.DumpTypeSorted(cmd.OutOrStdout(), root)
	},
}
