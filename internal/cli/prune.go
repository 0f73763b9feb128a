package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneAll bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Clean up finished jobs and offline nodes",
	Long: `Remove old and unused entries from the broker.

By default, removes:
- Finished, failed and aborted jobs
- Offline nodes that nobody holds

Use --all to also remove online nodes that nobody holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		result, err := client.Prune(pruneAll)
		if err != nil {
			return fmt.Errorf("failed to prune: %w", err)
		}

		fmt.Printf("Pruned:\n")
		fmt.Printf("  Jobs:     %d\n", result.JobsRemoved)
		fmt.Printf("  Nodes:    %d\n", result.NodesRemoved)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "also remove online nodes that are not held")
}
