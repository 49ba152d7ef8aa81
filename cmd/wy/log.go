package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/timelog"
)

func newLogCmd() *cobra.Command {
	var (
		configPath string
		entry      timelog.Entry
		week       string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log hours spent on a work item for a week",
		Long: `Records hours for one work item, person and week. Logging the same
item and week again replaces the earlier hours.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			entry.Week = time.Now()
			if week != "" {
				key, err := timelog.ParseWeek(week)
				if err != nil {
					return err
				}
				entry.Week, _ = time.Parse("2006-01-02", key)
			}
			ctx := cmd.Context()
			row, err := timelog.Log(ctx, a.db, entry)
			if err != nil {
				return err
			}
			a.capacity.RecomputeAdvisory(ctx, row.PersonID)

			current, _ := time.Parse("2006-01-02", row.WeekStartDate)
			previous := current.AddDate(0, 0, -7)
			logs, err := timelog.ListForPerson(ctx, a.db, entry.PersonID, previous)
			if err != nil {
				return err
			}
			thisWeek := timelog.WeekTotal(logs, row.WeekStartDate)
			lastWeek := timelog.WeekTotal(logs, timelog.WeekKey(previous))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged %s hours for week of %s\n", formatHours(row.HoursSpent), row.WeekStartDate)
			fmt.Fprintf(out, "Week total %s (last week %s, trend %s)\n",
				formatHours(thisWeek), formatHours(lastWeek), timelog.Trend(thisWeek, lastWeek))
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&entry.WorkItemID, "item", "", "work item ID (required)")
	cmd.Flags().StringVar(&entry.PersonID, "person", "", "person ID (required)")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week, YYYY-MM-DD (default this week)")
	cmd.Flags().Float64Var(&entry.Hours, "hours", 0, "hours spent (required)")
	cmd.Flags().StringVar(&entry.Note, "note", "", "optional note")
	cmd.MarkFlagRequired("item")
	cmd.MarkFlagRequired("person")
	cmd.MarkFlagRequired("hours")
	return cmd
}
