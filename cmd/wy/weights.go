package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/weights"
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show and change capacity weights",
	}
	cmd.AddCommand(newWeightsListCmd())
	cmd.AddCommand(newWeightsApplyCmd())
	return cmd
}

func newWeightsListCmd() *cobra.Command {
	var configPath, configType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the applied weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			snap, err := a.weights.Snapshot(ctx)
			if err != nil {
				return err
			}
			rows, err := a.weights.List(ctx, configType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Weights version %d\n", snap.Version)
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Type", "Key", "Label", "Value"})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.ConfigType, r.Key, r.Label, strconv.FormatFloat(r.Value, 'f', -1, 64)})
			}
			tw.Render()
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&configType, "type", "", "only this config type (effort_size, role_weight, work_type_weight, phase_weight, capacity_threshold)")
	return cmd
}

func newWeightsApplyCmd() *cobra.Command {
	var configPath, actor string

	cmd := &cobra.Command{
		Use:   "apply <type/key=value>...",
		Short: "Apply a draft of weight changes atomically",
		Long: `Applies every change in one step. If any value is invalid nothing is
applied. Example:

  wy weights apply effort_size/XL=20 capacity_threshold/over=0.9`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			snap, err := a.weights.Snapshot(ctx)
			if err != nil {
				return err
			}
			ids := make(map[string]string)
			for _, r := range snap.List("") {
				ids[r.ConfigType+"/"+r.Key] = r.ID
			}
			draft := weights.NewDraft(snap)
			for _, arg := range args {
				name, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("change %q is not type/key=value", arg)
				}
				id, ok := ids[name]
				if !ok {
					return fmt.Errorf("no weight named %q", name)
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("change %q: %w", arg, err)
				}
				draft.Set(id, v)
			}
			if _, err := draft.Preview(); err != nil {
				return fmt.Errorf("draft rejected, nothing applied: %w", err)
			}

			changes := draft.Changes()
			next, err := a.weights.ApplyDraft(ctx, changes, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d change(s); weights version %d\n", len(changes), next.Version)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "actor", "", "name recorded on the revision")
	return cmd
}
