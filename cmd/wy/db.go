package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Workyard database",
		Long:  "Migrates all tables and seeds the capacity weights from config when none exist yet.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	fmt.Fprintf(out, "Connected to %s store\n", a.cfg.Database.Driver)

	if err := db.AutoMigrate(a.db); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	n, err := db.SeedWeights(a.db, a.cfg.Weights)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(out, "Weights already present; left unchanged")
	} else {
		fmt.Fprintf(out, "Seeded %d weights\n", n)
	}

	fmt.Fprintln(out, "\nWorkyard database initialized successfully.")
	return nil
}
