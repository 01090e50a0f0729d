package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	coreconfig "github.com/reelhaven/reelhaven/core/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reelhaven",
	Short: "Media dashboard backend with a generation-scoped cache core",
	Long: `ReelHaven proxies Sonarr/Radarr/Prowlarr/qBittorrent/Jellyfin and
caches artwork and catalog API responses behind a Valkey-backed,
generation-scoped cache.`,
}

var (
	flagPort  string
	flagDebug bool
)

func init() {
	// Load environment variables first
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)

	cobra.OnInitialize(initEnvConfig)
}

// initEnvConfig loads configuration from environment variables, with viper
// and CLI flags layered on top.
func initEnvConfig() {
	viper.AutomaticEnv()

	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	if envPort := viper.GetString("app_port"); envPort != "" {
		coreconfig.Global.App.Port = envPort
	}
	if viper.IsSet("app_debug") {
		coreconfig.Global.App.Debug = viper.GetBool("app_debug")
	}
	if flagPort != "" {
		coreconfig.Global.App.Port = flagPort
	}
	if flagDebug {
		coreconfig.Global.App.Debug = true
	}

	if coreconfig.Global.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
