package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newOTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "OTP challenge housekeeping",
	}

	cmd.AddCommand(newOTPClearCmd())

	return cmd
}

func newOTPClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete expired OTP challenges",
		Long:  "Delete expired OTP challenges from the store. With --all, every challenge is deleted, including ones still within their validity window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOTPClear(all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete all challenges, not only expired ones")

	return cmd
}

func runOTPClear(all bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	n, err := st.DeleteChallenges(context.Background(), !all)
	if err != nil {
		return fmt.Errorf("delete challenges: %w", err)
	}

	scope := "expired"
	if all {
		scope = "all"
	}
	fmt.Printf("Deleted %d OTP challenge(s) (%s)\n", n, scope)
	return nil
}
