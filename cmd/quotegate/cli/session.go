package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotegate/quotegate/internal/service"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clean up sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionSweepCmd())

	return cmd
}

// ---------- session list ----------

func newSessionListCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to show")

	return cmd
}

func runSessionList(jsonOutput bool, limit int) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sessions, err := st.ListSessions(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	type sessionRow struct {
		Prefix    string    `json:"token_prefix"`
		UserID    int64     `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
		Active    bool      `json:"active"`
		Expired   bool      `json:"expired"`
	}

	now := time.Now()
	rows := make([]sessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = sessionRow{
			Prefix:    s.TokenPrefix,
			UserID:    s.UserID,
			ExpiresAt: s.ExpiresAt,
			Active:    s.IsActive,
			Expired:   s.Expired(now),
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-14s %-8s %-25s %-8s %-8s\n", "TOKEN PREFIX", "USER", "EXPIRES", "ACTIVE", "EXPIRED")
	fmt.Printf("%-14s %-8s %-25s %-8s %-8s\n", "------------", "----", "-------", "------", "-------")
	for _, s := range rows {
		active, expired := "yes", "no"
		if !s.Active {
			active = "no"
		}
		if s.Expired {
			expired = "yes"
		}
		fmt.Printf("%-14s %-8d %-25s %-8s %-8s\n", s.Prefix, s.UserID, s.ExpiresAt.Format(time.RFC3339), active, expired)
	}

	return nil
}

// ---------- session sweep ----------

func newSessionSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate all expired sessions",
		Long:  "Run the expired-session sweep once. The server also runs this probabilistically on verification traffic.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionSweep()
		},
	}

	return cmd
}

func runSessionSweep() error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	verifier := service.NewVerifier(st, service.Options{}, slog.Default())
	swept, err := verifier.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}

	fmt.Printf("Deactivated %d expired session(s).\n", swept)
	return nil
}
