package commands

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	useMemory  bool
	force      bool
)

// RootCmd is the byteservectl entry point: operator tooling for user,
// bucket, credential, and bucket-config management against the
// metadata catalog directly.
var RootCmd = &cobra.Command{
	Use:   "byteservectl",
	Short: "Operator CLI for the byteserve metadata catalog",
	Long: `byteservectl manages the users, buckets, API tokens, S3
credentials, and per-bucket settings that byteserve serves, by talking
to the metadata store directly rather than through a wire API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/byteserve/config.yaml)")
	RootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use a throwaway in-memory store instead of connecting to Postgres")
	RootCmd.PersistentFlags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompts")

	RootCmd.AddCommand(userCmd)
	RootCmd.AddCommand(bucketCmd)
	RootCmd.AddCommand(tokenCmd)
	RootCmd.AddCommand(credentialCmd)
	RootCmd.AddCommand(settingsCmd)
	RootCmd.AddCommand(statsCmd)

	RootCmd.CompletionOptions.DisableDefaultCmd = true
}
