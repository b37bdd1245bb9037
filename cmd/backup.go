package cmd

import (
	"fmt"
	"time"

	"fabdrop/internal/rollback"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var backupForce bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List or restore backups of the dataset file",
	Long: `A gzip copy of the dataset file is saved before every import and KPI
sync writes it. backup.keep sets how many are kept (0 disables them).`,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := current.backups()
		backups, err := mgr.List()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			current.ui.Info("no backups in " + mgr.Dir())
			return nil
		}
		pairs := make([][2]string, 0, len(backups))
		for _, b := range backups {
			pairs = append(pairs, [2]string{b.ID, fmt.Sprintf("%s  %d bytes", b.Timestamp.Local().Format(time.DateTime), b.Size)})
		}
		ui.KeyValueTable(cmd.OutOrStdout(), pairs)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [ID]",
	Short: "Restore the dataset file from a backup (default latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := rollback.Latest
		if len(args) == 1 {
			id = args[0]
		}
		mgr := current.backups()
		backup, err := mgr.Get(id)
		if err != nil {
			return err
		}
		path := current.config.DataFile
		if !backupForce {
			ok, err := ui.Confirm(fmt.Sprintf("Replace %s with backup %s?", path, backup.ID), false)
			if err != nil {
				return err
			}
			if !ok {
				current.ui.Info(path + " not changed")
				return nil
			}
		}
		if _, err := mgr.Restore(backup.ID, path); err != nil {
			return err
		}
		current.ui.Success(fmt.Sprintf("%s restored from %s", path, backup.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd, backupRestoreCmd)
	backupRestoreCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "restore without asking")
}
