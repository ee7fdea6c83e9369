package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/studyhub/studyfeed/pkg/config"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/output"
	"github.com/studyhub/studyfeed/pkg/service"
)

var (
	accountName     string
	accountUsername string
	accountBio      string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Device preferences and account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.Settings.Load()
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", st)
		}
		return output.PrintRecord("Settings", map[string]interface{}{
			"theme":     st.Theme,
			"push":      onOff(st.PushNotifications),
			"biometric": onOff(st.BiometricLogin),
			"config":    config.GetConfigFilePath(),
		})
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(field, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, clierrors.ValidationError(field, "must be on or off")
}

var settingsThemeCmd = &cobra.Command{
	Use:       "theme [dark|light|toggle]",
	Short:     "Show or change the theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{service.ThemeDark, service.ThemeLight, "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			theme, err := a.Settings.Theme()
			if err != nil {
				return err
			}
			output.PrintRaw(theme)
			return nil
		}
		theme := strings.ToLower(args[0])
		if theme == "toggle" {
			if theme, err = a.Settings.ToggleTheme(); err != nil {
				return err
			}
		} else if err := a.Settings.SetTheme(theme); err != nil {
			return err
		}
		output.PrintSuccess("Theme set to %s", theme)
		return nil
	},
}

var settingsPushCmd = &cobra.Command{
	Use:       "push <on|off>",
	Short:     "Turn push notifications on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff("push", args[0])
		if err != nil {
			return err
		}
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Settings.SetPushNotifications(on); err != nil {
			return err
		}
		output.PrintSuccess("Push notifications %s", onOff(on))
		return nil
	},
}

var settingsBiometricCmd = &cobra.Command{
	Use:       "biometric <on|off>",
	Short:     "Turn biometric login on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseOnOff("biometric", args[0])
		if err != nil {
			return err
		}
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.Settings.SetBiometricLogin(on); err != nil {
			return err
		}
		output.PrintSuccess("Biometric login %s", onOff(on))
		return nil
	},
}

var settingsAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Edit account details",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		var upd service.ProfileUpdate
		if cmd.Flags().Changed("name") {
			upd.DisplayName = &accountName
		}
		if cmd.Flags().Changed("username") {
			upd.Username = &accountUsername
		}
		if cmd.Flags().Changed("bio") {
			upd.Bio = &accountBio
		}
		u, err := a.Settings.SaveAccount(cmd.Context(), upd)
		if err != nil {
			return err
		}
		output.PrintSuccess("Account saved")
		return printProfile(u)
	},
}

var settingsConfigCmd = &cobra.Command{
	Use:   "config <key> [value]",
	Short: "Read or persist a config file value",
	Long: `Read a configuration value, or write it to the config file.

  studyfeed settings config backend.driver
  studyfeed settings config backend.driver sqlite
  studyfeed settings config api.base_url https://api.studyfeed.app`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			output.PrintRaw(config.GetString(args[0]))
			return nil
		}
		if err := config.SetString(args[0], args[1]); err != nil {
			return clierrors.WriteError("save config", err)
		}
		output.PrintSuccess("%s = %s (saved to %s)", args[0], args[1], config.GetConfigFilePath())
		return nil
	},
}

func init() {
	settingsAccountCmd.Flags().StringVar(&accountName, "name", "", "Display name")
	settingsAccountCmd.Flags().StringVar(&accountUsername, "username", "", "Username, starting with @")
	settingsAccountCmd.Flags().StringVar(&accountBio, "bio", "", "Bio, up to 160 characters")

	settingsCmd.AddCommand(settingsThemeCmd)
	settingsCmd.AddCommand(settingsPushCmd)
	settingsCmd.AddCommand(settingsBiometricCmd)
	settingsCmd.AddCommand(settingsAccountCmd)
	settingsCmd.AddCommand(settingsConfigCmd)
}
