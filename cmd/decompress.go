package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treepress/internal/codec"
	"github.com/agentic-research/treepress/internal/ingest"
)

var decompressOut string

func init() {
	decompressCmd.Flags().StringVarP(&decompressOut, "output", "o", "", "Write JSON here instead of stdout")
	rootCmd.AddCommand(decompressCmd)
}

var decompressCmd = &cobra.Command{
	Use:   "decompress [input.tp]",
	Short: "Decode a compressed stream and print the tree as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		root, err := codec.Decode(data)
		if err != nil {
			return err
		}
		out := ingest.ToJSON(root) + "\n"
		if decompressOut == "" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		}
		return os.WriteFile(decompressOut, []byte(out), 0o644)
	},
}
