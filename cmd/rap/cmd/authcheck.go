package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/couling/webdav-rap/internal/auth"
)

func init() {
	authcheckCmd := &cobra.Command{
		Use:   "authcheck [username] [pam-service]",
		Short: "Check a user's credentials against PAM without serving any verbs",
		Long: `authcheck runs the same PAM login/privilege-drop sequence rap performs on
AUTHENTICATE, then immediately closes the session. It exists to let an
operator diagnose a failing PAM service configuration without needing a
front-end to drive a full session.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runAuthcheck,
	}
	rootCmd.AddCommand(authcheckCmd)
}

func runAuthcheck(_ *cobra.Command, args []string) error {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	service := "webdav"
	if len(args) > 1 {
		service = args[1]
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Printf("Password for %s: ", username)
	bytePassword, err := terminal.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	authr := auth.New(service, log)

	result, err := authr.Login(auth.Request{User: username, Password: string(bytePassword)})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	defer authr.Close()

	fmt.Printf("OK: authenticated as %q\n", result.CanonicalUser)
	return nil
}
