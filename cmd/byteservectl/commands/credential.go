package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/byteserve/internal/cli/output"
	"github.com/marmos91/byteserve/pkg/metadata"
)

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage S3 SigV4 credentials",
}

var credentialIssueCmd = &cobra.Command{
	Use:   "issue <username> <bucket>...",
	Short: "Issue an S3 access-key/secret-key pair scoped to one or more buckets",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		bucketNames := args[1:]

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		u, err := store.FindUserByUsername(cmd.Context(), username)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		scope := make(map[string]struct{}, len(bucketNames))
		for _, name := range bucketNames {
			b, err := store.FindBucketByName(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("find bucket %q: %w", name, err)
			}
			scope[b.ID] = struct{}{}
		}

		accessKey, err := randomToken(10)
		if err != nil {
			return fmt.Errorf("generate access key: %w", err)
		}
		secretKey, err := randomToken(20)
		if err != nil {
			return fmt.Errorf("generate secret key: %w", err)
		}

		c := &metadata.S3Credential{
			ID:           uuid.NewString(),
			UserID:       u.ID,
			AccessKey:    accessKey,
			SecretKey:    secretKey,
			BucketAccess: scope,
			CreatedAt:    time.Now().UTC(),
		}
		if err := store.CreateS3Credential(cmd.Context(), c); err != nil {
			return fmt.Errorf("create credential: %w", err)
		}

		fmt.Printf("Credential issued for %q, scoped to [%s]:\n", username, strings.Join(bucketNames, ", "))
		fmt.Printf("Access Key: %s\nSecret Key: %s\n", accessKey, secretKey)
		fmt.Println("Store the secret key now; it cannot be recovered later.")
		return nil
	},
}

var credentialRevokeCmd = &cobra.Command{
	Use:   "revoke <credential-id>",
	Short: "Revoke an S3 credential by its ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if err := store.DeleteS3Credential(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("revoke credential: %w", err)
		}
		fmt.Printf("Credential %q revoked\n", args[0])
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's S3 credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		u, err := store.FindUserByUsername(cmd.Context(), username)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		creds, err := store.ListS3Credentials(cmd.Context(), u.ID)
		if err != nil {
			return fmt.Errorf("list credentials: %w", err)
		}

		rows := make([][]string, 0, len(creds))
		for _, c := range creds {
			rows = append(rows, []string{c.ID, c.AccessKey, fmt.Sprintf("%d bucket(s)", len(c.BucketAccess))})
		}
		output.PrintTable(os.Stdout, []string{"ID", "Access Key", "Scope"}, rows)
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(credentialIssueCmd, credentialRevokeCmd, credentialListCmd)
}
