package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/astrogalery/astrogalery/internal/config"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "astrogalery",
		Short: "Enrich and cache astrophotography captures for a static gallery",
		Long: `Astrogalery scans a tree of telescope captures, resolves each observation
to a catalog identity, plate-solves the latest image of every object and draws
finder charts, then writes the data files a static gallery is generated from.

Remote lookups are cached on disk so that a rebuild of an unchanged tree makes
no network calls.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			initConfig()
			setupLogging(viper.GetBool("verbose"))
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.astrogalery.yaml or ~/.astrogalery.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().String("cache-dir", "", "directory holding the caches (default \"cache\")")
	cmd.PersistentFlags().Bool("offline", false, "never query remote services")
	_ = viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("cache_dir", cmd.PersistentFlags().Lookup("cache-dir"))
	_ = viper.BindPFlag("offline", cmd.PersistentFlags().Lookup("offline"))

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// initConfig reads the optional config file and wires env overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".astrogalery")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	config.Init()

	// It's fine if no config file is found; we use defaults.
	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "path", viper.ConfigFileUsed())
	}
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
