package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/byteserve/internal/cli/output"
	"github.com/marmos91/byteserve/pkg/metadata"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <username>",
	Short: "Issue a new API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		desc, _ := cmd.Flags().GetString("description")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		u, err := store.FindUserByUsername(cmd.Context(), username)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		raw, err := randomToken(32)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		t := &metadata.ApiToken{
			ID:          uuid.NewString(),
			UserID:      u.ID,
			Token:       raw,
			Description: desc,
			IsAPI:       true,
			CreatedAt:   time.Now().UTC(),
		}
		if ttl > 0 {
			expires := time.Now().UTC().Add(ttl)
			t.ExpiresAt = &expires
		}
		if err := store.CreateAPIToken(cmd.Context(), t); err != nil {
			return fmt.Errorf("create token: %w", err)
		}

		fmt.Printf("Token issued for %q (id: %s):\n%s\n", username, t.ID, raw)
		fmt.Println("Store this value now; it cannot be recovered later.")
		return nil
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke an API token by its ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if err := store.DeleteAPIToken(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
		fmt.Printf("Token %q revoked\n", args[0])
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's API tokens",
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

		tokens, err := store.ListAPITokens(cmd.Context(), u.ID)
		if err != nil {
			return fmt.Errorf("list tokens: %w", err)
		}

		rows := make([][]string, 0, len(tokens))
		for _, t := range tokens {
			expires := "never"
			if t.ExpiresAt != nil {
				expires = t.ExpiresAt.Format(time.RFC3339)
			}
			rows = append(rows, []string{t.ID, t.Description, expires})
		}
		output.PrintTable(os.Stdout, []string{"ID", "Description", "Expires"}, rows)
		return nil
	},
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func init() {
	tokenIssueCmd.Flags().String("description", "", "Human-readable label for this token")
	tokenIssueCmd.Flags().Duration("ttl", 0, "Token lifetime (0 for no expiry)")

	tokenCmd.AddCommand(tokenIssueCmd, tokenRevokeCmd, tokenListCmd)
}
