package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/e2llm/repoconf/pkg/config"
	"github.com/e2llm/repoconf/pkg/interact"
	"github.com/e2llm/repoconf/pkg/logging"
	"github.com/e2llm/repoconf/pkg/reconcile"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "repoconf",
		Short: "Manage package repositories and repository index services",
		Long: "repoconf adds, edits and removes package repositories and index services, " +
			"then writes the staged changes to the package manager configuration in one commit.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, cfgFile)
		},
		RunE: runRoot,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default .repoconf.yaml)")
	pf.String("mode", "", "run mode: embedded, refresh-enabled or interactive")
	pf.String("state-root", "", "storage URL holding repos.d and services.d (dir:// or s3://)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("output", "text", "output format for listing commands (text, json)")

	root.AddCommand(
		newListCmd(),
		newAddCmd(),
		newApplyCmd(),
		newRefreshCmd(),
		newPackagesCmd(),
		newKeysCmd(),
	)
	return root
}

func initConfig(cmd *cobra.Command, cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".repoconf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}
	config.BindEnv()

	flags := cmd.Flags()
	for key, flag := range map[string]string{"mode": "mode", "state_root": "state-root", "log_level": "log-level"} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	// It's fine if no config file is found; we use defaults.
	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadApp builds the app from the merged configuration.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, log, cmd.OutOrStdout())
}

// runRoot runs the mode selected by --mode: a batch refresh of enabled
// repositories, or the interactive editor.
func runRoot(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.mode == reconcile.ModeRefreshEnabled {
		return a.refreshEnabled(cmd.Context())
	}
	term := interact.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
	return newShell(a, term).run(cmd.Context())
}
