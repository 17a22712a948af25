package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/seda/internal/config"
	"github.com/Iron-Ham/seda/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "seda",
	Short: "Staged, self-tuning message pipeline",
	Long: `seda runs message pipelines built from named stages. Each stage owns a
queue and a pool of workers that grows and shrinks with load, and sheds
the oldest queued messages when its backlog exceeds the tolerable delay.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/seda/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
	bindFlag("config", rootCmd.PersistentFlags(), "config")
	bindFlag("logging.level", rootCmd.PersistentFlags(), "log-level")
	bindFlag("logging.format", rootCmd.PersistentFlags(), "log-format")
}

// flagBinding ties a viper key to a command flag.
type flagBinding struct {
	key   string
	flags *pflag.FlagSet
	name  string
}

var flagBindings []flagBinding

// bindFlag registers a flag to be bound to key each time configuration is
// initialized.
func bindFlag(key string, flags *pflag.FlagSet, name string) {
	flagBindings = append(flagBindings, flagBinding{key: key, flags: flags, name: name})
}

func initConfig() {
	for _, b := range flagBindings {
		_ = viper.BindPFlag(b.key, b.flags.Lookup(b.name))
	}

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SEDA")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SEDA_STAGE_MAX_POOL_SIZE for stage.max_pool_size
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the command logger. Without a log directory it writes to
// w, or discards output if w is nil.
func newLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	if cfg.Logging.Dir != "" {
		return logging.New(logging.Options{
			Dir:    cfg.Logging.Dir,
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	}
	if w == nil {
		return logging.NopLogger(), nil
	}
	return logging.NewWriterLogger(w, cfg.Logging.Level, cfg.Logging.Format), nil
}
