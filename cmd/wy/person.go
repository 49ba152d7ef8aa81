package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/people"
	"github.com/zulandar/workyard/internal/workitem"
)

func newPersonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage people who own work",
	}
	cmd.AddCommand(newPersonAddCmd())
	cmd.AddCommand(newPersonListCmd())
	cmd.AddCommand(newPersonShowCmd())
	return cmd
}

func newPersonAddCmd() *cobra.Command {
	var configPath string
	var opts people.CreateOpts

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := people.Create(a.db.WithContext(cmd.Context()), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s), %s hours/week\n", p.Name, p.ID, formatHours(p.AvailableHours))
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Title, "title", "", "job title")
	cmd.Flags().StringVar(&opts.ManagerID, "manager", "", "manager ID")
	cmd.Flags().Float64Var(&opts.AvailableHours, "hours", 0, "available hours per week (default 40)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newPersonListCmd() *cobra.Command {
	var configPath, managerID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := people.List(a.db.WithContext(cmd.Context()), managerID)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Title", "Manager", "Hours"})
			for _, p := range list {
				tw.AppendRow(table.Row{p.ID, p.Name, p.Title, deref(p.ManagerID), formatHours(p.AvailableHours)})
			}
			tw.Render()
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&managerID, "manager", "", "only reports of this manager")
	return cmd
}

func newPersonShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a person with capacity, item statuses and work types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			gdb := a.db.WithContext(ctx)
			p, err := people.Get(gdb, args[0])
			if err != nil {
				return err
			}
			snap, err := a.capacity.ForPerson(ctx, p.ID)
			if err != nil {
				return err
			}
			statuses, err := workitem.StatusSummary(gdb, p.ID)
			if err != nil {
				return err
			}
			types, err := capacity.WorkTypes(ctx, a.db, p.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.Name, p.ID)
			if p.Title != "" {
				fmt.Fprintf(out, "  Title:    %s\n", p.Title)
			}
			if p.ManagerID != nil {
				m, err := people.GetManager(gdb, *p.ManagerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  Manager:  %s\n", m.Name)
			}
			fmt.Fprintf(out, "  Capacity: %s planned of %s available (%s)\n",
				formatHours(snap.PlannedHours), formatHours(snap.AvailableHours), formatPercent(snap.Utilization))
			fmt.Fprintf(out, "  Status:   %s\n", capacity.FormatStatus(snap))

			if len(statuses) > 0 {
				fmt.Fprintln(out, "\nItems by status:")
				for _, sc := range statuses {
					fmt.Fprintf(out, "  %-12s %d\n", sc.Status, sc.Count)
				}
			}
			if len(types) > 0 {
				fmt.Fprintln(out, "\nWork types:")
				for _, wt := range types {
					fmt.Fprintf(out, "  %-18s %d\n", wt.WorkType, wt.Count)
				}
			}
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newManagerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Manage managers and their reports",
	}
	cmd.AddCommand(newManagerAddCmd())
	cmd.AddCommand(newManagerListCmd())
	cmd.AddCommand(newManagerAssignCmd())
	return cmd
}

func newManagerAddCmd() *cobra.Command {
	var configPath, name, email string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := people.CreateManager(a.db.WithContext(cmd.Context()), name, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added manager %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newManagerListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List managers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := people.ListManagers(a.db.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Email"})
			for _, m := range list {
				tw.AppendRow(table.Row{m.ID, m.Name, m.Email})
			}
			tw.Render()
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newManagerAssignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assign <person-id> <manager-id>",
		Short: "Make a person report to a manager",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := people.SetManager(a.db.WithContext(cmd.Context()), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now reports to %s\n", args[0], args[1])
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
