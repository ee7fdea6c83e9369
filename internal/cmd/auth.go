package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/prompter"
)

var (
	loginEmail    string
	loginPassword string
	loginToken    string
	loginLocal    bool
	loginName     string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Sign in to StudyFeed and manage the stored session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to StudyFeed",
	Long: `Sign in with email and password, with an existing access token, or
with --local to create an identity for the offline backends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}

		if loginToken != "" {
			creds, err := a.Auth.LoginWithToken(cmd.Context(), loginToken)
			if err != nil {
				return err
			}
			output.PrintSuccess("Logged in as %s", creds.Email)
			return nil
		}

		email := strings.TrimSpace(loginEmail)
		if email == "" {
			if email, err = prompter.PromptString("Email: "); err != nil {
				return err
			}
		}

		if loginLocal || a.Offline() {
			creds, err := a.Auth.LoginLocal(email, loginName)
			if err != nil {
				return err
			}
			output.PrintSuccess("Signed in locally as %s (%s)", creds.Email, creds.UserID)
			return nil
		}

		password := loginPassword
		if password == "" {
			if !prompter.Interactive() {
				return clierrors.ValidationError("password", "pass --password when stdin is not a terminal")
			}
			if password, err = prompter.PromptPassword("Password: "); err != nil {
				return err
			}
		}
		creds, err := a.Auth.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		output.PrintSuccess("Logged in as %s", creds.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Auth.Logout(cmd.Context(), a.Session); err != nil {
			return err
		}
		output.PrintSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		creds, err := a.Auth.WhoAmI()
		if err != nil {
			return err
		}
		record := map[string]interface{}{
			"uid":   creds.UserID,
			"email": creds.Email,
			"name":  creds.DisplayName,
		}
		if !creds.ExpiresAt.IsZero() {
			record["expires"] = creds.ExpiresAt.Local().Format("2006-01-02 15:04")
		}
		return output.PrintRecord("Signed in", record)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Sign in with an existing access token")
	loginCmd.Flags().BoolVar(&loginLocal, "local", false, "Create a local identity for the offline backends")
	loginCmd.Flags().StringVar(&loginName, "name", "", "Display name for --local")
	loginCmd.MarkFlagsMutuallyExclusive("token", "local")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(whoamiCmd)
}
