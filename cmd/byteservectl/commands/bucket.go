package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/byteserve/internal/cli/output"
	"github.com/marmos91/byteserve/internal/cli/prompt"
	"github.com/marmos91/byteserve/pkg/metadata"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage buckets",
}

var bucketAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a bucket owned by --owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		owner, _ := cmd.Flags().GetString("owner")
		access, _ := cmd.Flags().GetString("access")
		quota, _ := cmd.Flags().GetInt64("quota")

		if owner == "" {
			return fmt.Errorf("--owner is required")
		}
		if !isValidAccess(access) {
			return fmt.Errorf("invalid --access %q (valid: private, public-read, public-write)", access)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		u, err := store.FindUserByUsername(cmd.Context(), owner)
		if err != nil {
			return fmt.Errorf("find owner: %w", err)
		}

		b := &metadata.Bucket{
			ID:           uuid.NewString(),
			Name:         name,
			OwnerID:      u.ID,
			Access:       metadata.BucketAccess(access),
			StorageQuota: quota,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := store.CreateBucket(cmd.Context(), b); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		fmt.Printf("Bucket %q created (id: %s, owner: %s)\n", name, b.ID, owner)
		return nil
	},
}

var bucketDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a bucket's metadata (blobs must be reclaimed separately)",
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

		ok, err := prompt.ConfirmOrForce(fmt.Sprintf("Delete bucket %q and all its objects?", name), force)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}

		if err := store.DeleteBucket(cmd.Context(), b.ID); err != nil {
			return fmt.Errorf("delete bucket: %w", err)
		}
		fmt.Printf("Bucket %q deleted (blobs must still be reclaimed from disk)\n", name)
		return nil
	},
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		var buckets []*metadata.Bucket
		if owner != "" {
			u, err := store.FindUserByUsername(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("find owner: %w", err)
			}
			buckets, err = store.ListBucketsByOwner(cmd.Context(), u.ID)
			if err != nil {
				return fmt.Errorf("list buckets: %w", err)
			}
		} else {
			buckets, err = store.ListAllBuckets(cmd.Context())
			if err != nil {
				return fmt.Errorf("list buckets: %w", err)
			}
		}

		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			quota := "unlimited"
			if b.StorageQuota != metadata.Unlimited {
				quota = strconv.FormatInt(b.StorageQuota, 10)
			}
			rows = append(rows, []string{b.Name, b.ID, string(b.Access), quota})
		}
		output.PrintTable(os.Stdout, []string{"Name", "ID", "Access", "Quota"}, rows)
		return nil
	},
}

var bucketSetAccessCmd = &cobra.Command{
	Use:   "set-access <name> <private|public-read|public-write>",
	Short: "Change a bucket's S3 access mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, access := args[0], args[1]
		if !isValidAccess(access) {
			return fmt.Errorf("invalid access %q (valid: private, public-read, public-write)", access)
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
		b.Access = metadata.BucketAccess(access)
		b.UpdatedAt = time.Now().UTC()
		if err := store.UpdateBucket(cmd.Context(), b); err != nil {
			return fmt.Errorf("update bucket: %w", err)
		}
		fmt.Printf("Bucket %q access set to %q\n", name, access)
		return nil
	},
}

func isValidAccess(access string) bool {
	switch metadata.BucketAccess(access) {
	case metadata.AccessPrivate, metadata.AccessPublicRead, metadata.AccessPublicWrite:
		return true
	default:
		return false
	}
}

func init() {
	bucketAddCmd.Flags().String("owner", "", "Owning username (required)")
	bucketAddCmd.Flags().String("access", string(metadata.AccessPrivate), "Access mode: private, public-read, public-write")
	bucketAddCmd.Flags().Int64("quota", metadata.Unlimited, "Storage quota in bytes (-1 for unlimited)")
	bucketListCmd.Flags().String("owner", "", "Restrict to buckets owned by this username")

	bucketCmd.AddCommand(bucketAddCmd, bucketDeleteCmd, bucketListCmd, bucketSetAccessCmd)
}
