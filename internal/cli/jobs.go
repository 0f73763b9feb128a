package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
	"github.com/spf13/cobra"
)

var (
	acquireJobID    string
	acquireRequires []string
	acquireTimeout  time.Duration
	endAbort        bool
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire resources for a job",
	Long: `Acquire one node per --require for a job and print the job environment.

Each requirement is label[:PREFIX]. The command blocks until every
requirement is held, the timeout passes, or it is interrupted. On success
the environment is written to stdout as KEY=VALUE lines, e.g.

  DB_NODE_NAME=db-1
  DB_PORT=5432

If any requirement cannot be met, everything already acquired is released.
Run "resctl end <job>" when the job is done.`,
	Example: `  eval "$(resctl acquire --job build-42 --require db:DB --require cache:CACHE | sed 's/^/export /')"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(acquireRequires) == 0 {
			return fmt.Errorf("at least one --require is needed")
		}

		reqs := make([]types.Requirement, 0, len(acquireRequires))
		for _, raw := range acquireRequires {
			req, err := parseRequirement(raw)
			if err != nil {
				return err
			}
			reqs = append(reqs, req)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := NewClient(GetBrokerURL())

		job, err := client.Acquire(ctx, acquireJobID, reqs, acquireTimeout)
		if err != nil {
			var apiErr *APIError
			if job != nil && errors.As(err, &apiErr) {
				return fmt.Errorf("job %s %s: %s", job.JobID, job.Status, apiErr.Message)
			}
			return fmt.Errorf("failed to acquire resources: %w", err)
		}

		if IsVerbose() {
			_, _ = fmt.Fprintf(os.Stderr, "Job %s acquired:\n", job.JobID)
			for _, g := range job.Grants {
				_, _ = fmt.Fprintf(os.Stderr, "  %s -> %s\n", g.Label, g.Node.Name)
			}
		}

		for _, line := range envLines(job.Env) {
			fmt.Println(line)
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs [job]",
	Short: "List jobs",
	Long:  `List all jobs known to the broker or show details of one job.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		if len(args) == 1 {
			job, err := client.GetJob(args[0])
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			printJob(job)
			return nil
		}

		jobs, err := client.ListJobs()
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintf(w, "ID\tSTATUS\tNODES\tDESCRIPTION\tCREATED\n")

		for _, job := range jobs {
			nodes := make([]string, 0, len(job.Grants))
			for _, g := range job.Grants {
				nodes = append(nodes, g.Node.Name)
			}

			_, _ = fmt.Fprintf(
				w, "%s\t%s\t%s\t%s\t%s\n",
				job.JobID,
				job.Status,
				orDash(strings.Join(nodes, ",")),
				orDash(job.Description),
				formatDuration(time.Since(job.CreatedAt)),
			)
		}

		_ = w.Flush()
		return nil
	},
}

var endCmd = &cobra.Command{
	Use:   "end <job>",
	Short: "End a job and release its resources",
	Long: `End a job: stop any acquisition still in progress and release every
node the job holds. Safe to call more than once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetBrokerURL())

		var (
			job *types.Job
			err error
		)
		if endAbort {
			job, err = client.AbortJob(args[0])
		} else {
			job, err = client.EndJob(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to end job: %w", err)
		}

		fmt.Printf("Job %s %s\n", job.JobID, job.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(acquireCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(endCmd)

	acquireCmd.Flags().StringVarP(&acquireJobID, "job", "j", "", "job id (generated when empty)")
	acquireCmd.Flags().StringArrayVarP(&acquireRequires, "require", "r", []string{}, "requirement as label[:PREFIX]")
	acquireCmd.Flags().DurationVarP(&acquireTimeout, "timeout", "t", 0, "maximum wait per requirement (broker default when 0)")

	endCmd.Flags().BoolVar(&endAbort, "abort", false, "mark the job aborted instead of finished")
}

func printJob(job *types.Job) {
	fmt.Println("Job Details:")
	fmt.Printf("  ID:            %s\n", job.JobID)
	fmt.Printf("  Status:        %s\n", job.Status)
	if job.Description != "" {
		fmt.Printf("  Description:   %s\n", job.Description)
	}
	fmt.Printf("  Timeout:       %s\n", job.Timeout)
	fmt.Printf("  Created:       %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started:       %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		fmt.Printf("  Finished:      %s\n", job.FinishedAt.Format(time.RFC3339))
	}
	if job.Error != "" {
		fmt.Printf("  Error:         %s\n", job.Error)
	}

	if len(job.Requirements) > 0 {
		fmt.Println("\nRequirements:")
		for _, r := range job.Requirements {
			fmt.Printf("  %s (%s)\n", r.Label, r.VariablePrefix)
		}
	}

	if len(job.Grants) > 0 {
		fmt.Println("\nGrants:")
		for _, g := range job.Grants {
			fmt.Printf("  %s -> %s\n", g.Label, g.Node.Name)
		}
	}

	if len(job.Env) > 0 {
		fmt.Println("\nEnvironment Variables:")
		for _, line := range envLines(job.Env) {
			fmt.Printf("  %s\n", line)
		}
	}
}

// parseRequirement parses label[:PREFIX]. Without a prefix the label is
// upper-cased with every non-alphanumeric rune replaced by '_'.
func parseRequirement(raw string) (types.Requirement, error) {
	label, prefix, _ := strings.Cut(strings.TrimSpace(raw), ":")
	label = strings.TrimSpace(label)
	prefix = strings.TrimSpace(prefix)

	if label == "" {
		return types.Requirement{}, fmt.Errorf("invalid requirement %q: label is empty", raw)
	}
	if strings.ContainsAny(label, " \t") {
		return types.Requirement{}, fmt.Errorf("invalid requirement %q: label must be a single word", raw)
	}

	if prefix == "" {
		prefix = strings.Map(
			func(r rune) rune {
				switch {
				case r >= 'a' && r <= 'z':
					return r - 'a' + 'A'
				case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
					return r
				default:
					return '_'
				}
			}, label,
		)
	}

	return types.Requirement{Label: label, VariablePrefix: prefix}, nil
}

func envLines(env map[string]string) []string {
	lines := make([]string, 0, len(env))
	for k, v := range env {
		lines = append(lines, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(lines)
	return lines
}
