package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue [label]",
	Short: "Show wait queues",
	Long: `Show the requests waiting for each label, oldest first.

The request currently being served is marked with *.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		var queues []types.LabelQueue
		if len(args) == 1 {
			queue, err := client.GetQueue(args[0])
			if err != nil {
				return fmt.Errorf("failed to get queue: %w", err)
			}
			queues = []types.LabelQueue{*queue}
		} else {
			all, err := client.ListQueues()
			if err != nil {
				return fmt.Errorf("failed to list queues: %w", err)
			}
			queues = all
		}

		waiting := 0
		for _, q := range queues {
			waiting += len(q.Requests)
		}
		if waiting == 0 {
			fmt.Println("No requests waiting.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprint(w, "LABEL\tPOS\tREQUESTER\tWAITING\n")

		for _, q := range queues {
			for i, r := range q.Requests {
				pos := fmt.Sprintf("%d", i+1)
				if r.InService {
					pos += "*"
				}
				_, _ = fmt.Fprintf(
					w, "%s\t%s\t%s\t%s\n",
					q.Label,
					pos,
					r.Requester,
					formatDuration(time.Since(r.CreatedAt)),
				)
			}
		}

		_ = w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
