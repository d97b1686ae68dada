package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/byteserve/internal/cli/output"
	"github.com/marmos91/byteserve/internal/cli/prompt"
	"github.com/marmos91/byteserve/internal/passwordhash"
	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		isAdmin, _ := cmd.Flags().GetBool("admin")
		quota, _ := cmd.Flags().GetInt64("quota")

		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if _, err := store.FindUserByUsername(cmd.Context(), username); err == nil {
			return fmt.Errorf("user %q already exists", username)
		} else if !apierr.Is(err, apierr.NotFound) {
			return fmt.Errorf("check existing user: %w", err)
		}

		password, err := prompt.PasswordWithConfirmation(8)
		if err != nil {
			return err
		}

		hash, err := passwordhash.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		u := &metadata.User{
			ID:           uuid.NewString(),
			Username:     username,
			PasswordHash: hash,
			Enabled:      true,
			IsAdmin:      isAdmin,
			StorageQuota: quota,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := store.CreateUser(cmd.Context(), u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("User %q created (id: %s)\n", username, u.ID)
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user",
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

		ok, err := prompt.ConfirmOrForce(fmt.Sprintf("Delete user %q and all owned buckets' metadata?", username), force)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}

		if err := store.DeleteUser(cmd.Context(), u.ID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		fmt.Printf("User %q deleted\n", username)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		users, err := store.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		rows := make([][]string, 0, len(users))
		for _, u := range users {
			quota := "unlimited"
			if u.StorageQuota != metadata.Unlimited {
				quota = strconv.FormatInt(u.StorageQuota, 10)
			}
			rows = append(rows, []string{
				u.Username, u.ID, strconv.FormatBool(u.IsAdmin),
				strconv.FormatBool(u.Enabled), quota,
			})
		}
		output.PrintTable(os.Stdout, []string{"Username", "ID", "Admin", "Enabled", "Quota"}, rows)
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
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

		password, err := prompt.PasswordWithConfirmation(8)
		if err != nil {
			return err
		}
		hash, err := passwordhash.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		u.PasswordHash = hash
		u.UpdatedAt = time.Now().UTC()
		if err := store.UpdateUser(cmd.Context(), u); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		fmt.Printf("Password changed for user %q\n", username)
		return nil
	},
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Re-enable a disabled user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return setUserEnabled(cmd.Context(), args[0], true) },
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user, blocking all its credentials and tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error { return setUserEnabled(cmd.Context(), args[0], false) },
}

func setUserEnabled(ctx context.Context, username string, enabled bool) error {
	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	u, err := store.FindUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	u.Enabled = enabled
	u.UpdatedAt = time.Now().UTC()
	if err := store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	fmt.Printf("User %q enabled=%v\n", username, enabled)
	return nil
}

func init() {
	userAddCmd.Flags().Bool("admin", false, "Grant admin privileges")
	userAddCmd.Flags().Int64("quota", metadata.Unlimited, "Storage quota in bytes (-1 for unlimited)")

	userCmd.AddCommand(userAddCmd, userDeleteCmd, userListCmd, userPasswdCmd, userEnableCmd, userDisableCmd)
}
