package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/insights"
)

func newAskCmd() *cobra.Command {
	var configPath, balance string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about org capacity",
		Long: `Sends the current org capacity snapshot and your question to the
configured chat model. Set insights.api_key or WORKYARD_OPENAI_KEY first.

With --balance <person-id>,<person-id> it sends those two people's workloads
instead and asks which assignments to move between them; the question is
optional.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if balance == "" && len(args) == 0 {
				return errors.New("a question is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var pair []string
			if balance != "" {
				pair = strings.Split(balance, ",")
				if len(pair) != 2 || strings.TrimSpace(pair[0]) == "" || strings.TrimSpace(pair[1]) == "" {
					return fmt.Errorf("--balance wants two person IDs separated by a comma, got %q", balance)
				}
			}

			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			advisor, err := insights.New(a.cfg.Insights, a.capacity.ForOrg, a.log)
			if errors.Is(err, insights.ErrNotConfigured) {
				return fmt.Errorf("insights are not configured: set insights.api_key or WORKYARD_OPENAI_KEY")
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			question := strings.Join(args, " ")
			var ans *insights.Answer
			if pair != nil {
				first, err := insights.LoadWorkload(ctx, a.db, a.capacity, strings.TrimSpace(pair[0]))
				if err != nil {
					return err
				}
				second, err := insights.LoadWorkload(ctx, a.db, a.capacity, strings.TrimSpace(pair[1]))
				if err != nil {
					return err
				}
				ans, err = advisor.Balance(ctx, first, second, question)
				if err != nil {
					return err
				}
			} else {
				ans, err = advisor.Ask(ctx, question)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Answer)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&balance, "balance", "", "two person IDs, comma separated, to rebalance")
	return cmd
}
