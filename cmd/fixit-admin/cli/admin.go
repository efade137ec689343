package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"

	"github.com/spf13/cobra"

	"github.com/fixitug/fixit-admin/internal/model"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Provision and manage the admin accounts the OTP login reads. Accounts are passwordless; email is the whole identity.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminActivateCmd())
	cmd.AddCommand(newAdminDeactivateCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email string
		name  string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  fixit-admin admin create --email admin@fixit.ug --name "Jane Admin"
  fixit-admin admin create --email ops@fixit.ug --name Ops --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(email, name, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name (required)")
	cmd.Flags().StringVar(&role, "role", model.AdminRole, "Account role")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAdminCreate(email, name, role string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %q", email)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if existing, err := st.GetAdminByEmail(ctx, email); err == nil && existing != nil {
		return fmt.Errorf("admin %q already exists", email)
	}

	admin := &model.Admin{
		Email:    email,
		Name:     name,
		Role:     role,
		IsActive: true,
	}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("Created admin account %q (%s)\n", email, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	admins, err := st.ListAdmins(context.Background())
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Println("No admin accounts. Use 'fixit-admin admin create' to create one.")
		return nil
	}

	fmt.Printf("%-36s %-30s %-24s %-8s %s\n", "ID", "EMAIL", "NAME", "ACTIVE", "LAST LOGIN")
	for _, a := range admins {
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		lastLogin := "never"
		if a.LastLoginAt != nil {
			lastLogin = a.LastLoginAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-36s %-30s %-24s %-8s %s\n", a.ID, a.Email, a.Name, active, lastLogin)
	}

	return nil
}

// ---------- admin activate / deactivate ----------

func newAdminActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <email>",
		Short: "Re-enable a deactivated admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetActive(args[0], true)
		},
	}
	return cmd
}

func newAdminDeactivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Disable an admin account without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetActive(args[0], false)
		},
	}
	return cmd
}

func runAdminSetActive(email string, active bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SetAdminActive(context.Background(), email, active); err != nil {
		return fmt.Errorf("update admin %q: %w", email, err)
	}

	state := "activated"
	if !active {
		state = "deactivated"
	}
	fmt.Printf("Admin account %q %s\n", email, state)
	return nil
}
