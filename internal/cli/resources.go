package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var reserveUser string

var resourcesCmd = &cobra.Command{
	Use:     "resources",
	Aliases: []string{"res"},
	Short:   "List reservable nodes",
	Long:    `List every reservable node together with its current holder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		resources, err := client.ListResources()
		if err != nil {
			return fmt.Errorf("failed to list resources: %w", err)
		}

		if len(resources) == 0 {
			fmt.Println("No reservable nodes.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprint(w, "NAME\tLABELS\tSTATUS\tHOLDER\tKIND\tSINCE\n")

		for _, r := range resources {
			holder, kind, since := "-", "-", "-"
			if r.Reservation != nil {
				holder = r.Reservation.Holder
				kind = string(r.Reservation.Kind)
				since = formatDuration(time.Since(r.Reservation.CreatedAt))
			}

			_, _ = fmt.Fprintf(
				w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Node.Name,
				orDash(r.Node.Labels),
				r.Node.Status,
				holder,
				kind,
				since,
			)
		}

		_ = w.Flush()
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List labels carried by reservable nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		labels, err := client.ListLabels()
		if err != nil {
			return fmt.Errorf("failed to list labels: %w", err)
		}

		for _, label := range labels {
			fmt.Println(label)
		}
		return nil
	},
}

var reserveCmd = &cobra.Command{
	Use:   "reserve <node>",
	Short: "Reserve a node for a user",
	Long: `Reserve a node by name for a user, bypassing the wait queues.

Fails if the node is already held.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := strings.TrimSpace(reserveUser)
		if user == "" {
			user = os.Getenv("USER")
		}
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		client := NewClient(GetBrokerURL())

		res, err := client.Reserve(args[0], user)
		if err != nil {
			return fmt.Errorf("failed to reserve %s: %w", args[0], err)
		}

		fmt.Printf("Reserved %s for %s\n", res.Node, res.Holder)
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <node>...",
	Short: "Release nodes",
	Long: `Release the reservation on one or more nodes, whoever holds them.

Releasing a node that is not held is not an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		for _, node := range args {
			result, err := client.Release(node)
			if err != nil {
				return fmt.Errorf("failed to release %s: %w", node, err)
			}

			if result.Released {
				fmt.Printf("Released %s (held by %s)\n", result.Node, result.Holder)
			} else {
				fmt.Printf("%s was not reserved\n", result.Node)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(reserveCmd)
	rootCmd.AddCommand(releaseCmd)

	reserveCmd.Flags().StringVarP(&reserveUser, "user", "u", "", "user to hold the reservation (default $USER)")
}
