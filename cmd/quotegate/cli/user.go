package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quotegate/quotegate/internal/model"
	"github.com/quotegate/quotegate/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage gateway accounts",
		Long:  "Create, list, and manage accounts that authenticate against the QuoteGate API.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserRotateKeyCmd())
	cmd.AddCommand(newUserDisableCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account",
		Long:  "Create an account and generate its API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  quotegate user create --username alice --email alice@example.com
  quotegate user create --username bot  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(username, email, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Contact email address")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runUserCreate(username, email, password string) error {
	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	passwordHash, err := service.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	rawKey, err := service.NewAPIKey()
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		APIKeyHash:   service.HashSecret(rawKey),
		KeyPrefix:    service.DisplayPrefix(rawKey),
		IsActive:     true,
	}

	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Println("Account created:")
	fmt.Println()
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  API key:  %s\n", rawKey)
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	type userRow struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Prefix   string `json:"key_prefix"`
		Requests int64  `json:"total_requests"`
		Active   bool   `json:"active"`
	}

	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{
			Username: u.Username,
			Email:    u.Email,
			Prefix:   u.KeyPrefix,
			Requests: u.TotalRequests,
			Active:   u.IsActive,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No accounts configured. Use 'quotegate user create' to create one.")
		return nil
	}

	fmt.Printf("%-20s %-28s %-14s %-10s %-8s\n", "USERNAME", "EMAIL", "KEY PREFIX", "REQUESTS", "ACTIVE")
	fmt.Printf("%-20s %-28s %-14s %-10s %-8s\n", "--------", "-----", "----------", "--------", "------")
	for _, u := range rows {
		active := "yes"
		if !u.Active {
			active = "no"
		}
		fmt.Printf("%-20s %-28s %-14s %-10d %-8s\n", u.Username, u.Email, u.Prefix, u.Requests, active)
	}

	return nil
}

// ---------- user rotate-key ----------

func newUserRotateKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-key <username>",
		Short: "Rotate an account's API key",
		Long:  "Replace an account's API key. The old key stops working immediately; the new key is shown once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserRotateKey(args[0])
		},
	}

	return cmd
}

func runUserRotateKey(username string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("account %q not found", username)
	}

	verifier := service.NewVerifier(st, service.Options{}, slog.Default())
	newKey, err := verifier.RotateAPIKey(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("rotate key: %w", err)
	}

	fmt.Printf("API key rotated for %q:\n", username)
	fmt.Println()
	fmt.Printf("  New key: %s\n", newKey)
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- user disable ----------

func newUserDisableCmd() *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "disable <username>",
		Short: "Disable an account",
		Long:  "Disable an account so its credentials stop authenticating. Use --undo to re-enable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserDisable(args[0], enable)
		},
	}

	cmd.Flags().BoolVar(&enable, "undo", false, "Re-enable the account instead")

	return cmd
}

func runUserDisable(username string, enable bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("account %q not found", username)
	}

	if err := st.SetUserActive(ctx, user.ID, enable); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if enable {
		fmt.Printf("Account %q re-enabled.\n", username)
	} else {
		fmt.Printf("Account %q disabled.\n", username)
	}
	return nil
}
