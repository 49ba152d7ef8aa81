package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/report"
)

func newCapacityCmd() *cobra.Command {
	var (
		configPath string
		personID   string
		managerID  string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show weekly capacity for a person, a manager's team or the org",
		Long: `Planned hours are scored from each active work item's effort, role,
work type and phase. Utilization is planned over available hours.
Items missing role, size, type or phase are left out and lower data quality.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if personID != "" && managerID != "" {
				return fmt.Errorf("use either --person or --manager, not both")
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var team capacity.Team
			switch {
			case personID != "":
				s, err := a.capacity.ForPerson(ctx, personID)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, s)
				}
				printSnapshots(out, []capacity.Snapshot{s}, nil)
				fmt.Fprintf(out, "%s\n", capacity.FormatStatus(s))
				return nil
			case managerID != "":
				team, err = a.capacity.ForManager(ctx, managerID)
			default:
				team, err = a.capacity.ForOrg(ctx)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, team)
			}
			printSnapshots(out, team.Members, &team.Summary)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&personID, "person", "", "one person's capacity")
	cmd.Flags().StringVar(&managerID, "manager", "", "a manager's team roll-up")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(newCapacityExportCmd())
	return cmd
}

func printSnapshots(out io.Writer, rows []capacity.Snapshot, total *capacity.Snapshot) {
	tw := newTable(out)
	tw.AppendHeader(table.Row{"Name", "Active", "Planned", "Actual", "Available", "Utilization", "Band", "Data Quality"})
	row := func(s capacity.Snapshot) table.Row {
		return table.Row{
			s.Name, s.ActiveAssignments, formatHours(s.PlannedHours), formatHours(s.ActualHours),
			formatHours(s.AvailableHours), formatPercent(s.Utilization), bandColor(out, s.Band),
			formatPercent(s.DataQuality),
		}
	}
	for _, s := range rows {
		tw.AppendRow(row(s))
	}
	if total != nil {
		tw.AppendFooter(row(*total))
	}
	tw.Render()
}

func newCapacityExportCmd() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the org and manager roll-ups to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			org, err := a.capacity.ForOrg(ctx)
			if err != nil {
				return err
			}
			teams, err := a.capacity.ManagerTeams(ctx)
			if err != nil {
				return err
			}
			if err := report.SaveWorkbook(outPath, org, teams); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d people and %d managers to %s\n", len(org.Members), len(teams), outPath)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&outPath, "out", "o", "capacity.xlsx", "workbook path")
	return cmd
}
