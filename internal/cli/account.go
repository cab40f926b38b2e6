package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var signupCmd = &cobra.Command{
	Use:   "signup [email]",
	Short: "Register a new account and sign in",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSignup,
}

var signinCmd = &cobra.Command{
	Use:   "signin [email]",
	Short: "Sign in with email and password",
	Long: `Sign in with email and password.

The signed-in identity is stored locally so later commands act as this
user. Credentials themselves are never stored.

Examples:
  chatdesk signin alice@example.com
  chatdesk signin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignin,
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the stored session",
	RunE:  runSignout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func runSignup(cmd *cobra.Command, args []string) error {
	email, err := promptEmail(args)
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	profile, err := authenticator.SignUp(context.Background(), email, password)
	if err != nil {
		return err
	}
	if err := sessionFile.Save(profile); err != nil {
		return err
	}

	fmt.Printf("Registered and signed in as %s\n", profile.Email)
	return nil
}

func runSignin(cmd *cobra.Command, args []string) error {
	email, err := promptEmail(args)
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	profile, err := authenticator.SignIn(context.Background(), email, password)
	if err != nil {
		return err
	}
	if err := sessionFile.Save(profile); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", profile.Email)
	return nil
}

func runSignout(cmd *cobra.Command, args []string) error {
	authenticator.SignOut()
	if err := sessionFile.Clear(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	userID, email, err := sessionFile.Load()
	if err != nil {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s (%s)\n", email, userID)
	return nil
}

func promptEmail(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	fmt.Print("Email: ")
	reader := bufio.NewReader(os.Stdin)
	email, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read email: %w", err)
	}
	return strings.TrimSpace(email), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
