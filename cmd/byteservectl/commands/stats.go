package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <bucket-id> [day]",
	Short: "Show a bucket's request/byte counters for a UTC day (default: today)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bucketID := args[0]
		day := time.Now().UTC().Format("2006-01-02")
		if len(args) == 2 {
			day = args[1]
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		s, err := store.GetStats(cmd.Context(), bucketID, day)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Bucket:        %s\n", s.BucketID)
		fmt.Printf("Day:           %s\n", s.Day)
		fmt.Printf("API requests:  %d\n", s.APIRequests)
		fmt.Printf("S3 requests:   %d\n", s.S3Requests)
		fmt.Printf("WebDAV reqs:   %d\n", s.WebDAVReqs)
		fmt.Printf("Total reqs:    %d\n", s.RequestsCount)
		fmt.Printf("Bytes served:  %d\n", s.BytesServed)
		return nil
	},
}
