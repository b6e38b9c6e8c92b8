package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
	displayName   string
)

func init() {
	RootCmd.AddCommand(loginCmd, logoutCmd, signUpCmd)

	for _, c := range []*cobra.Command{loginCmd, signUpCmd} {
		c.Flags().StringVar(&loginEmail, "email", envOr("BLOG_EMAIL", ""), "account email")
		c.Flags().StringVar(&loginPassword, "password", envOr("BLOG_PASSWORD", ""), "account password")
	}
	signUpCmd.Flags().StringVar(&displayName, "name", "", "display name")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the token for this server",
	Run:   login,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the saved token",
	Run:   logout,
}

var signUpCmd = &cobra.Command{
	Use:   "sign-up",
	Short: "Create an account, then sign in",
	Run:   signUp,
}

func login(cmd *cobra.Command, args []string) {
	if loginEmail == "" || loginPassword == "" {
		outputErrorAndExit("--email and --password are required")
	}
	c := newClient()
	user, err := c.Login(context.Background(), loginEmail, loginPassword)
	if err != nil {
		outputErrorAndExit("Error logging in: %v", err)
	}
	if err := saveSession(session{Server: serverURL, Token: c.Token(), Email: loginEmail}); err != nil {
		outputErrorAndExit("Error saving session: %v", err)
	}
	role := "reader"
	if user.IsAdmin {
		role = "admin"
	}
	fmt.Printf("✅ Signed in as %s (%s)\n", user.Username, role)
}

func logout(cmd *cobra.Command, args []string) {
	c := newClient()
	if c.Token() != "" {
		if err := c.Logout(context.Background()); err != nil {
			fmt.Println("Warning: server did not revoke the token:", err)
		}
	}
	if err := clearSession(); err != nil {
		outputErrorAndExit("Error clearing session: %v", err)
	}
	fmt.Println("👋 Signed out")
}

func signUp(cmd *cobra.Command, args []string) {
	if loginEmail == "" || loginPassword == "" || displayName == "" {
		outputErrorAndExit("--email, --password and --name are required")
	}
	c := newClient()
	if _, err := c.Register(context.Background(), loginEmail, displayName, loginPassword); err != nil {
		outputErrorAndExit("Error creating account: %v", err)
	}
	login(cmd, args)
}
