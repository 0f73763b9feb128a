package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultBrokerURL = "http://localhost:8080"

var (
	brokerURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "resctl",
	Short: "resctl - control the reservable resource broker",
	Long: `resctl talks to a reservable broker.

Admins use it to inspect nodes, wait queues and reservations, and to
reserve or release nodes by hand. Job scripts use "acquire" to block
until every resource they need is held, and "end" to give them back.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&brokerURL, "broker", defaultBrokerURL, "broker API URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	// Check environment variable for broker URL
	if envBroker := os.Getenv("RESCTL_BROKER_URL"); envBroker != "" && brokerURL == defaultBrokerURL {
		brokerURL = envBroker
	}
}

// GetBrokerURL returns the configured broker URL
func GetBrokerURL() string {
	return brokerURL
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
