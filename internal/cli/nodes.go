package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes",
	Long:  `List all nodes known to the broker and their status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		nodes, err := client.ListNodes()
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}

		if len(nodes) == 0 {
			fmt.Println("No nodes registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprint(w, "NAME\tLABELS\tRESERVABLE\tSTATUS\tLAST HEARTBEAT\n")

		for _, node := range nodes {
			heartbeatStr := "-"
			if !node.LastHeartbeat.IsZero() {
				heartbeatStr = formatDuration(time.Since(node.LastHeartbeat)) + " ago"
			}

			_, _ = fmt.Fprintf(
				w, "%s\t%s\t%t\t%s\t%s\n",
				node.Name,
				orDash(node.Labels),
				node.Reservable,
				node.Status,
				heartbeatStr,
			)
		}

		_ = w.Flush()

		if IsVerbose() {
			fmt.Printf("\nTotal nodes: %d\n", len(nodes))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}
