// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/internal/config"
	"github.com/xkilldash9x/prospector-cli/internal/observability"
)

var (
	cfgFile string
)

// newRootCmd builds the base command. Constructed fresh per Execute
// call and per test so flag state never leaks between executions.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prospector",
		Short:   "Prospector is a vision-guided browser agent that harvests contact information.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Fall back to a bare console logger so the error is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "prospector"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting prospector", zap.String("version", Version))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./prospector.yaml, then ~/.prospector/prospector.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately. An interrupt cancels the command context so in-flight
// runs stop between steps.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// initializeConfig reads the config file and environment variables.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".prospector"))
		}
		viper.SetConfigName("prospector")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PROSPECTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}
	return nil
}
