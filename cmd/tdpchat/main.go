// Package main implements tdpchat, the Swinburne chatbot server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML file passed with --config.
	configPath string
	// version is set at build time with -ldflags "-X main.version=...".
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tdpchat",
		Short: "Swinburne University chatbot",
		Long: `tdpchat answers questions about Swinburne University from a local
knowledge index, tracks the topics students ask about and serves both
over HTTP.

Configuration is read from tdpchat.yaml (or --config) and TDPCHAT_*
environment variables. OPENAI_API_KEY is used when no key is configured.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./tdpchat.yaml if present)")

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newAddDocsCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newTopicsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tdpchat", version)
		},
	}
}
