// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/internal/config"
	"github.com/xkilldash9x/seatctl/internal/observability"
	"github.com/xkilldash9x/seatctl/internal/service"
)

type contextKey string

const configKey contextKey = "seatctl.config"

// factory builds the components for every command. Tests replace it.
var factory service.ComponentFactory = service.NewComponentFactory()

// NewRootCommand builds a fresh command tree. Each call returns independent flag state.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "seatctl",
		Short:         "seatctl drives a team-admin console to check sessions, sync rosters and invite members.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "seatctl"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "seatctl"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			applyFlagOverrides(cmd, cfg)

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting seatctl", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./seatctl.yaml)")
	rootCmd.PersistentFlags().Bool("headless", true, "run browsers without a visible window (overrides config)")
	rootCmd.PersistentFlags().Bool("interactive", false, "allow manual-assist waits when a challenge appears (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newCheckLoginCmd(),
		newSyncCmd(),
		newVerifyCmd(),
		newInitLoginCmd(),
		newDeleteProfileCmd(),
		newInviteCmd(),
		newAutoInviteCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file and SEATCTL_ environment variables into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("seatctl")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SEATCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// applyFlagOverrides lets explicitly set flags win over file and environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		b, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(b)
	}
	if flags.Changed("interactive") {
		b, _ := flags.GetBool("interactive")
		cfg.SetAutomationInteractive(b)
	}
}

func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	if cfg, ok := ctx.Value(configKey).(config.Interface); ok && cfg != nil {
		return cfg, nil
	}
	return nil, errors.New("configuration not found in context")
}

// withComponents builds the components for one command run and always shuts them down.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, comps *service.Components) error, opts ...service.Option) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	comps, err := factory.Create(ctx, cfg, observability.GetLogger(), opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer comps.Shutdown()
	return fn(ctx, comps)
}
