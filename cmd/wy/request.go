package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zulandar/workyard/internal/governance"
	"github.com/zulandar/workyard/internal/models"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Governance request intake and review",
		Long: `Governance requests move Draft -> Ready for Review -> Ready for Governance -> Completed.
Needs Refinement sends a request back to the submitter; Dismissed closes it.
An owner's work item is created once the request is under review with an owner.`,
	}
	cmd.AddCommand(newRequestCreateCmd())
	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestShowCmd())
	cmd.AddCommand(newRequestTransitionCmd())
	cmd.AddCommand(newRequestAssignCmd())
	cmd.AddCommand(newRequestCommentCmd())
	cmd.AddCommand(newRequestPipelineCmd())
	return cmd
}

func newRequestCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       governance.CreateOpts
		financial  float64
		metrics    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a Draft governance request",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("financial-impact") {
				opts.FinancialImpact = &financial
			}
			for _, name := range metrics {
				opts.ImpactMetrics = append(opts.ImpactMetrics, models.ImpactMetric{MetricName: name})
			}
			req, err := a.machine.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s (%s)\n", req.RequestCode, req.Title, req.Status)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	f := cmd.Flags()
	f.StringVar(&opts.Title, "title", "", "request title (required)")
	f.StringVar(&opts.WorkEffort, "effort", "", "effort size: XS, S, M, L, XL")
	f.StringVar(&opts.Detail.DivisionRegion, "division", "", "division or region")
	f.StringVar(&opts.Detail.SubmitterName, "submitter", "", "submitter name")
	f.StringVar(&opts.Detail.SubmitterEmail, "email", "", "submitter email")
	f.StringVar(&opts.Detail.ProblemStatement, "problem", "", "problem statement")
	f.StringVar(&opts.Detail.DesiredOutcomes, "outcomes", "", "desired outcomes")
	f.StringVar(&opts.Detail.SponsorName, "sponsor", "", "executive sponsor")
	f.Float64Var(&financial, "financial-impact", 0, "projected annual financial impact")
	f.StringVar(&opts.ProjectionBasis, "projection-basis", "", "basis of the financial projection")
	f.StringArrayVar(&opts.KeyAssumptions, "assumption", nil, "key assumption (repeatable)")
	f.StringArrayVar(&metrics, "metric", nil, "impact metric name (repeatable)")
	f.StringVar(&opts.Actor, "actor", "", "who is creating the request")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newRequestListCmd() *cobra.Command {
	var (
		configPath string
		filters    governance.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List governance requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := governance.List(a.db.WithContext(cmd.Context()), filters)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Code", "Title", "Status", "Division", "Owner", "Effort"})
			for _, r := range list {
				tw.AppendRow(table.Row{
					r.RequestCode, r.Title, r.Status, r.Detail.DivisionRegion,
					r.AssignedOwnerName, deref(r.WorkEffort),
				})
			}
			tw.Render()
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Division, "division", "", "filter by division or region")
	cmd.Flags().StringVarP(&filters.Search, "search", "q", "", "match code, title or submitter")
	cmd.Flags().StringVar(&filters.Sort, "sort", "code", "sort by code, date or title")
	cmd.Flags().BoolVar(&filters.Desc, "desc", false, "sort descending")
	return cmd
}

func newRequestShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id-or-code>",
		Short: "Show a governance request with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			req, err := governance.Get(a.db.WithContext(cmd.Context()), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), req)
			}
			printRequest(cmd.OutOrStdout(), req)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printRequest(out io.Writer, r *models.GovernanceRequest) {
	fmt.Fprintf(out, "%s  %s\n", r.RequestCode, r.Title)
	fmt.Fprintf(out, "  Status:     %s\n", r.Status)
	if next := governance.NextStates(r.Status); len(next) > 0 {
		fmt.Fprintf(out, "  Next:       %s\n", strings.Join(next, ", "))
	}
	fmt.Fprintf(out, "  Division:   %s\n", r.Detail.DivisionRegion)
	fmt.Fprintf(out, "  Submitter:  %s <%s>\n", r.Detail.SubmitterName, r.Detail.SubmitterEmail)
	fmt.Fprintf(out, "  Effort:     %s\n", deref(r.WorkEffort))
	if r.AssignedOwnerName != "" {
		fmt.Fprintf(out, "  Owner:      %s\n", r.AssignedOwnerName)
	}
	if r.LinkedInitiativeID != nil {
		fmt.Fprintf(out, "  Work item:  %s\n", *r.LinkedInitiativeID)
	}
	if r.Detail.ProblemStatement != "" {
		fmt.Fprintf(out, "\nProblem:\n  %s\n", r.Detail.ProblemStatement)
	}
	if r.Detail.DesiredOutcomes != "" {
		fmt.Fprintf(out, "Outcomes:\n  %s\n", r.Detail.DesiredOutcomes)
	}
	if len(r.Comments) > 0 {
		fmt.Fprintln(out, "\nComments:")
		for _, c := range r.Comments {
			fmt.Fprintf(out, "  [%s] %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorName, c.Text)
		}
	}
}

func printOutcome(out io.Writer, o *governance.Outcome) {
	if o.From != o.To {
		fmt.Fprintf(out, "%s: %s -> %s\n", o.Request.RequestCode, o.From, o.To)
	} else {
		fmt.Fprintf(out, "%s: owner %s (%s)\n", o.Request.RequestCode, o.Request.AssignedOwnerName, o.To)
	}
	if o.Phase1 != nil && o.Phase1.Item != nil && !o.Phase1.AlreadyDone {
		fmt.Fprintf(out, "  Created work item %s: %s\n", o.Phase1.Item.ID, o.Phase1.Item.Name)
	}
	if o.Phase2 != nil && o.Phase2.Item != nil {
		fmt.Fprintf(out, "  Copied request details to work item %s\n", o.Phase2.Item.ID)
		if len(o.Phase2.FailedSteps) > 0 {
			fmt.Fprintf(out, "  Failed steps: %s\n", strings.Join(o.Phase2.FailedSteps, ", "))
		}
	}
	if o.Completed != nil && o.Completed.Item != nil {
		fmt.Fprintf(out, "  Work item %s is now %s\n", o.Completed.Item.ID, o.Completed.Item.Status)
	}
	for _, n := range o.Notes {
		fmt.Fprintf(out, "  Note: %s\n", n)
	}
}

// reportOutcome prints a committed outcome and passes a side-effect error
// through as the command's error.
func reportOutcome(out io.Writer, o *governance.Outcome, err error) error {
	if o == nil {
		return err
	}
	printOutcome(out, o)
	if err != nil {
		return fmt.Errorf("status saved, but a follow-up step failed: %w", err)
	}
	return nil
}

func newRequestTransitionCmd() *cobra.Command {
	var configPath, actor string

	cmd := &cobra.Command{
		Use:   "transition <id-or-code> <status>",
		Short: "Move a request to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			o, err := a.machine.Transition(cmd.Context(), args[0], args[1], actor)
			return reportOutcome(cmd.OutOrStdout(), o, err)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "actor", "", "who is making the change")
	return cmd
}

func newRequestAssignCmd() *cobra.Command {
	var configPath, effort, actor string

	cmd := &cobra.Command{
		Use:   "assign <id-or-code> <owner-id>",
		Short: "Assign an owner to a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			o, err := a.machine.Assign(cmd.Context(), args[0], args[1], effort, actor)
			return reportOutcome(cmd.OutOrStdout(), o, err)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&effort, "effort", "", "set the effort size as well")
	cmd.Flags().StringVar(&actor, "actor", "", "who is making the change")
	return cmd
}

func newRequestCommentCmd() *cobra.Command {
	var configPath, author string

	cmd := &cobra.Command{
		Use:   "comment <id-or-code> <text>",
		Short: "Add a review comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := governance.AddComment(a.db.WithContext(cmd.Context()), args[0], author, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Comment added")
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&author, "author", "", "comment author (required)")
	cmd.MarkFlagRequired("author")
	return cmd
}

func newRequestPipelineCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Summarize the request queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := governance.PipelineMetrics(a.db.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := newTable(out)
			tw.AppendHeader(table.Row{"Status", "Requests"})
			for _, s := range p.Statuses() {
				tw.AppendRow(table.Row{s, p.ByStatus[s]})
			}
			tw.AppendFooter(table.Row{"Total", p.Total})
			tw.Render()
			fmt.Fprintf(out, "Needs review: %d  Ready for assignment: %d  In prep: %d\n",
				p.NeedsReview, p.ReadyForAssignment, p.InPrep)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
