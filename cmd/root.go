package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"fabdrop/internal/config"
	"fabdrop/internal/observability"
	"fabdrop/internal/ui"
	apperrors "fabdrop/pkg/errors"

	"github.com/spf13/cobra"
)

// noLogFile marks commands that never write the run log.
const noLogFile = "fabdrop/no-log-file"

var (
	configFile string
	verbose    bool
	current    *app

	rootCmd = &cobra.Command{
		Use:   "fabdrop",
		Short: "Publish the licensing dashboard dataset to Microsoft Fabric",
		Long: `fabdrop keeps the dashboard dataset in data.js current and ships it to Fabric.

It imports tracker exports and workbooks into the data file, exports the
dataset as lakehouse tables, deploys the semantic model and report through
the workspace's git connection, refreshes the model and syncs KPI values back.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if current != nil {
				current.close()
			}
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./fabdrop.yaml or ~/.fabdrop/fabdrop.yaml)")
	flags.StringP("workspace", "w", "", "Fabric workspace name")
	flags.String("data-js", "", "path of the dataset file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	flags.String("log-file", "", "run log file")
}

// setup loads the configuration and opens the run log before any command.
func setup(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	flags := cmd.Root().PersistentFlags()
	bindings := map[string]string{
		"workspace":    "workspace",
		"data_file":    "data-js",
		"logging.file": "log-file",
	}
	for key, flag := range bindings {
		if err := loader.BindFlag(key, flags.Lookup(flag)); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "failed to bind --"+flag)
		}
	}
	cfg, err := loader.Load(configFile)
	if err != nil {
		return err
	}

	logCfg := observability.LoggerConfig{
		Level:   cfg.Logging.Level,
		Verbose: verbose,
		File:    cfg.Logging.File,
		Output:  cmd.ErrOrStderr(),
	}
	if _, ok := cmd.Annotations[noLogFile]; ok {
		logCfg.File = ""
	}
	log, err := observability.NewLogger(logCfg)
	if err != nil {
		return err
	}
	current = &app{
		config:     cfg,
		configFile: loader.ConfigFileUsed(),
		log:        log,
		ui:         ui.NewUI(verbose, false),
	}
	log.Run().WithField("command", cmd.CommandPath()).Debug("starting")
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	handler := apperrors.NewHandler(os.Stderr, verbose)
	if current != nil {
		handler.LogFile = current.config.Logging.File
		if err != nil {
			current.log.Run().WithError(err).Error("command failed")
		}
		current.close()
	}
	return handler.Handle(withTip(err))
}

// withTip adds a hint for failures such as a missing az executable that
// carry no suggestion of their own.
func withTip(err error) error {
	if err == nil {
		return nil
	}
	tip := ui.Suggestion(err.Error())
	if tip == "" {
		return err
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if len(appErr.Suggestions) == 0 {
			appErr.WithSuggestions(tip)
		}
		return err
	}
	return apperrors.New(apperrors.ErrCodeInternal, err.Error()).WithSuggestions(tip)
}
