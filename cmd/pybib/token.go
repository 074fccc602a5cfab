package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwillcox/pybib/internal/config"
)

var (
	tokenDir    string
	tokenReveal bool
)

func init() {
	tokenSetCmd.Flags().StringVar(&tokenDir, "dir", "", "Directory to write .adstoken to (default: config directory)")
	tokenShowCmd.Flags().BoolVar(&tokenReveal, "reveal", false, "Print the full token instead of a masked one")
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the NASA ADS API token",
	Long: fmt.Sprintf(`Manage the NASA ADS API token.

The token is taken from the first of:
  --adstoken flag
  %s environment variable (also read from .env)
  %s in the working directory, then in the config directory
  ads_token in the config file`, config.TokenEnv, config.TokenFile),
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Save the ADS token to a .adstoken file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenSet,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which ADS token will be used",
	Args:  cobra.NoArgs,
	RunE:  runTokenShow,
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	dir := tokenDir
	if dir == "" {
		dir = config.Dir()
	}

	path, err := config.WriteTokenFile(config.ExpandPath(dir), args[0])
	if err != nil {
		exitWithError(ExitConfigError, "saving token: %v", err)
	}

	if humanOutput {
		fmt.Printf("Saved ADS token to %s\n", path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "saved", Path: path})
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	token, source, err := config.ResolveToken(adsToken, cfg, config.TokenDirs())
	if err != nil {
		exitWithError(ExitConfigError, "reading token: %v", err)
	}
	if token == "" {
		exitWithError(ExitConfigError, "no ADS token configured")
	}

	shown := token
	if !tokenReveal {
		shown = maskToken(token)
	}

	if humanOutput {
		fmt.Printf("%s (from %s)\n", shown, source)
		return nil
	}
	return outputJSON(TokenResponse{Token: shown, Source: source})
}
