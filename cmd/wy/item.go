package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/scoring"
	"github.com/zulandar/workyard/internal/workitem"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage work items",
	}
	cmd.AddCommand(newItemAddCmd())
	cmd.AddCommand(newItemListCmd())
	cmd.AddCommand(newItemShowCmd())
	cmd.AddCommand(newItemUpdateCmd())
	cmd.AddCommand(newItemDeleteCmd())
	cmd.AddCommand(newItemReassignCmd())
	return cmd
}

func newItemAddCmd() *cobra.Command {
	var (
		configPath string
		opts       workitem.CreateOpts
		hours      float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a work item for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("hours") {
				opts.DirectHoursPerWeek = &hours
			}
			item, err := workitem.Create(a.db.WithContext(cmd.Context()), opts)
			if err != nil {
				return err
			}
			a.capacity.RecomputeAdvisory(cmd.Context(), item.OwnerID)
			fmt.Fprintf(cmd.OutOrStdout(), "Created work item %s: %s\n", item.ID, item.Name)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner person ID (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "work item name (required)")
	cmd.Flags().StringVar(&opts.Category, "category", "Project", "work type")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (default Not Started)")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "phase, e.g. Planning or Implementation")
	cmd.Flags().StringVar(&opts.WorkEffort, "effort", "", "effort size: XS, S, M, L, XL")
	cmd.Flags().StringVar(&opts.Role, "role", "", "owner's role on the item")
	cmd.Flags().Float64Var(&hours, "hours", 0, "direct hours per week; overrides the weighted score")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newItemListCmd() *cobra.Command {
	var (
		configPath string
		filters    workitem.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			items, err := workitem.List(a.db.WithContext(cmd.Context()), filters)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Owner", "Name", "Category", "Status", "Phase", "Effort", "Role"})
			for _, it := range items {
				tw.AppendRow(table.Row{
					it.ID, it.OwnerName, it.Name, it.Category, it.Status,
					deref(it.Phase), deref(it.WorkEffort), deref(it.Role),
				})
			}
			tw.Render()
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.OwnerID, "owner", "", "filter by owner ID")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Category, "category", "", "filter by work type")
	return cmd
}

func newItemShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item with its story, financials and metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			full, err := workitem.GetFull(a.db.WithContext(cmd.Context()), args[0])
			if err != nil {
				return err
			}
			snap, err := a.weights.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			score := scoring.Explain(full.WorkItem, snap)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), struct {
					*workitem.Full
					Score scoring.Breakdown `json:"score"`
				}{full, score})
			}
			printItem(cmd.OutOrStdout(), full, score)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newItemUpdateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		category   string
		status     string
		phase      string
		effort     string
		role       string
		hours      float64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]interface{}{}
			for flag, col := range map[string]string{
				"name": "name", "category": "category", "status": "status",
				"phase": "phase", "effort": "work_effort", "role": "role",
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					updates[col] = v
				}
			}
			if cmd.Flags().Changed("hours") {
				updates["direct_hours_per_week"] = hours
			}

			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			gdb := a.db.WithContext(cmd.Context())
			if err := workitem.Update(gdb, args[0], updates); err != nil {
				return err
			}
			item, err := workitem.Get(gdb, args[0])
			if err != nil {
				return err
			}
			a.capacity.RecomputeAdvisory(cmd.Context(), item.OwnerID)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated work item %s (%d field(s))\n", item.ID, len(updates))
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "work item name")
	cmd.Flags().StringVar(&category, "category", "", "work type")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&phase, "phase", "", "phase")
	cmd.Flags().StringVar(&effort, "effort", "", "effort size: XS, S, M, L, XL")
	cmd.Flags().StringVar(&role, "role", "", "owner's role on the item")
	cmd.Flags().Float64Var(&hours, "hours", 0, "direct hours per week")
	return cmd
}

func newItemDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a work item that no governance request links to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			gdb := a.db.WithContext(cmd.Context())
			item, err := workitem.Get(gdb, args[0])
			if err != nil {
				return err
			}
			if err := workitem.Delete(gdb, item.ID); err != nil {
				return err
			}
			a.capacity.RecomputeAdvisory(cmd.Context(), item.OwnerID)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted work item %s\n", item.ID)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newItemReassignCmd() *cobra.Command {
	var configPath, role string

	cmd := &cobra.Command{
		Use:   "reassign <id> <person-id>",
		Short: "Move a work item to another owner",
		Long: `Moves a work item and its planned hours to another person. Capacity is
recomputed for both the previous and the new owner.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			moved, err := workitem.Reassign(a.db.WithContext(ctx), args[0], args[1], role)
			if note, ok := apperr.Note(err); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Note: %s\n", note)
				return nil
			}
			if err != nil {
				return err
			}
			a.capacity.RecomputeAdvisory(ctx, moved.PreviousOwnerID)
			if moved.Item.OwnerID != moved.PreviousOwnerID {
				a.capacity.RecomputeAdvisory(ctx, moved.Item.OwnerID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reassigned %s to %s as %s\n",
				moved.Item.Name, moved.Item.OwnerName, deref(moved.Item.Role))
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&role, "role", "", "new owner's role (default keeps the current role)")
	return cmd
}

func printItem(out io.Writer, f *workitem.Full, score scoring.Breakdown) {
	fmt.Fprintf(out, "%s\n", f.Name)
	fmt.Fprintf(out, "  ID:        %s\n", f.ID)
	fmt.Fprintf(out, "  Owner:     %s\n", f.OwnerName)
	fmt.Fprintf(out, "  Category:  %s\n", f.Category)
	fmt.Fprintf(out, "  Status:    %s\n", f.Status)
	fmt.Fprintf(out, "  Phase:     %s\n", deref(f.Phase))
	fmt.Fprintf(out, "  Effort:    %s\n", deref(f.WorkEffort))
	fmt.Fprintf(out, "  Role:      %s\n", deref(f.Role))
	if f.GovernanceRequestID != nil {
		fmt.Fprintf(out, "  Request:   %s\n", *f.GovernanceRequestID)
	}
	if score.Direct {
		fmt.Fprintf(out, "  Planned:   %s h/week (direct)\n", formatHours(score.Hours))
	} else {
		fmt.Fprintf(out, "  Planned:   %s h/week (%g base x %g role x %g type x %g phase)\n",
			formatHours(score.Hours), score.BaseHours, score.RoleWeight, score.TypeWeight, score.PhaseWeight)
	}
	if f.Story != nil {
		fmt.Fprintf(out, "\nChallenge:\n  %s\n", f.Story.Challenge)
		fmt.Fprintf(out, "Outcome:\n  %s\n", f.Story.Outcome)
	}
	if f.Financial != nil && f.Financial.ProjectedAnnual != nil {
		fmt.Fprintf(out, "\nProjected annual impact: %.2f (%s)\n", *f.Financial.ProjectedAnnual, f.Financial.ProjectionBasis)
	}
	if len(f.Metrics) > 0 {
		fmt.Fprintln(out, "\nMetrics:")
		for _, m := range f.Metrics {
			fmt.Fprintf(out, "  %d. %s\n", m.DisplayOrder+1, m.MetricName)
		}
	}
}
