package cmd

import (
	"fmt"
	"os"
	"strconv"

	"fabdrop/internal/config"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configForce bool
	configTable bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the fabdrop configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.GetConfigFile()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			ok, err := ui.Confirm(fmt.Sprintf("%s exists. Overwrite?", path), false)
			if err != nil {
				return err
			}
			if !ok {
				current.ui.Info("configuration not changed")
				return nil
			}
		}

		ui.ShowLogo()
		cfg, err := ui.NewConfigWizard().Run(current.config)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		current.ui.Success("configuration written to " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := current.config
		out := cmd.OutOrStdout()
		source := current.configFile
		if source == "" {
			source = "defaults"
		}
		if !configTable {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# %s\n%s", source, data)
			return nil
		}
		ui.KeyValueTable(out, [][2]string{
			{"Config file", source},
			{"Workspace", cfg.Workspace},
			{"Data file", cfg.DataFile},
			{"Fiscal year", cfg.FiscalYear},
			{"Model", cfg.Report.ModelName},
			{"Report", cfg.Report.ReportName},
			{"Pusher", cfg.Report.Pusher},
			{"Upload folder", cfg.Lakehouse.UploadFolder},
			{"Auth provider", cfg.Auth.Provider},
			{"Poll attempts", strconv.Itoa(cfg.Polling.MaxAttempts)},
			{"Log file", cfg.Logging.File},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite without asking")
	configShowCmd.Flags().BoolVar(&configTable, "table", false, "print a summary table instead of YAML")
	for _, c := range []*cobra.Command{configInitCmd, configShowCmd} {
		c.Annotations = map[string]string{noLogFile: "true"}
	}
}
