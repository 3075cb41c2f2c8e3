package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/parley/pkg/settings"
)

var (
	configPath string
	cfg        = settings.NewSettings()
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Streaming chat conversations with editable, regenerable history",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return err
		}
		bindFlag(cmd, "model", &cfg.Model)
		bindFlag(cmd, "db", &cfg.DatabasePath)
		bindFlag(cmd, "log-level", &cfg.LogLevel)
		if cmd.Flags().Changed("thinking") {
			cfg.ThinkingEnabled = viper.GetBool("thinking")
		}
		if key := viper.GetString("api-key"); key != "" {
			cfg.APIKey = key
		}
		if url := viper.GetString("base-url"); url != "" {
			cfg.BaseURL = url
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

// bindFlag overlays a changed flag or a set environment variable onto a
// settings field, leaving the file/default value alone otherwise.
func bindFlag(cmd *cobra.Command, name string, target *string) {
	if cmd.Flags().Changed(name) || os.Getenv(envName(name)) != "" {
		if v := viper.GetString(name); v != "" {
			*target = v
		}
	}
}

func envName(flag string) string {
	return "PARLEY_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML settings file")
	rootCmd.PersistentFlags().String("model", "", "Model to use for completions")
	rootCmd.PersistentFlags().String("db", "", "Path to the conversation database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("thinking", false, "Request thinking deltas from the model")

	viper.SetEnvPrefix("PARLEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newConversationsCommand())

	cobra.CheckErr(rootCmd.Execute())
}

func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "parley.yaml"
	}
	return homeDir + "/.parley/config.yaml"
}
