package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/byteserve/internal/bucketconfig"
	"github.com/marmos91/byteserve/internal/cli/output"
	"github.com/marmos91/byteserve/pkg/metadata"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Get or set per-bucket configuration keys",
}

// recognizedKeys mirrors internal/bucketconfig's recognized key table,
// needed here to tell callers which keys exist and what type they are.
var recognizedKeys = map[string]metadata.ConfigValueType{
	bucketconfig.KeyPathCachingEnable:         metadata.ConfigBoolean,
	bucketconfig.KeyPathCachingTTLSeconds:     metadata.ConfigNumber,
	bucketconfig.KeySendFolderIndex:           metadata.ConfigBoolean,
	bucketconfig.KeyImageTransformEnable:      metadata.ConfigBoolean,
	bucketconfig.KeyImageTransformCacheEnable: metadata.ConfigBoolean,
	bucketconfig.KeyImageTransformCacheTTL:    metadata.ConfigNumber,
	bucketconfig.KeyImageTransformCacheMaxMB:  metadata.ConfigNumber,
	bucketconfig.KeyClearEmptyParents:         metadata.ConfigBoolean,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <bucket>",
	Short: "Show every configured key for a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		b, err := store.FindBucketByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("find bucket: %w", err)
		}

		rows, err := store.GetBucketConfig(cmd.Context(), b.ID)
		if err != nil {
			return fmt.Errorf("get bucket config: %w", err)
		}

		out := make([][]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, []string{r.Key, r.Value, string(r.Type)})
		}
		output.PrintTable(os.Stdout, []string{"Key", "Value", "Type"}, out)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <bucket> <key> <value>",
	Short: "Set a recognized bucket configuration key",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, key, value := args[0], args[1], args[2]

		valueType, ok := recognizedKeys[key]
		if !ok {
			return fmt.Errorf("unrecognized bucket config key %q", key)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		b, err := store.FindBucketByName(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("find bucket: %w", err)
		}

		if err := store.SetBucketConfig(cmd.Context(), b.ID, key, value, valueType); err != nil {
			return fmt.Errorf("set bucket config: %w", err)
		}
		fmt.Printf("Bucket %q: %s = %s\n", name, key, value)
		return nil
	},
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List recognized bucket configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, 0, len(recognizedKeys))
		for key, t := range recognizedKeys {
			rows = append(rows, []string{key, string(t)})
		}
		output.PrintTable(os.Stdout, []string{"Key", "Type"}, rows)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsKeysCmd)
}
