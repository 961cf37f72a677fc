package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"devopsmirror/internal/api"
	"devopsmirror/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a work item and its transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail *api.WorkItemDetail
			err := ctx.withBackend(func(backend workItemBackend) error {
				var err error
				detail, err = backend.Describe(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return describeLookupError(args[0], err)
			}
			return render(cmd, ctx.format(), detail, func() error {
				printWorkItemDetail(cmd, detail)
				return nil
			})
		},
	}
}

func newTimeInStateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "time-in-state <id>",
		Short: "Report cumulative time a work item spent in each state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary *api.TimeInState
			err := ctx.withBackend(func(backend workItemBackend) error {
				var err error
				summary, err = backend.TimeInState(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return describeLookupError(args[0], err)
			}
			return render(cmd, ctx.format(), summary, func() error {
				printTimeInState(cmd, summary)
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be zero or positive")
			}
			var items []api.WorkItemSummary
			err := ctx.withBackend(func(backend workItemBackend) error {
				var err error
				items, err = backend.List(cmd.Context(), limit)
				return err
			})
			if err != nil {
				return err
			}
			if items == nil {
				items = []api.WorkItemSummary{}
			}
			return render(cmd, ctx.format(), api.WorkItemList{Items: items}, func() error {
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No work items recorded")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{string(item.DevOpsID), item.Title, item.CurrentState, item.LastUpdated})
				}
				fmt.Fprintln(out, tableView{
					headers: []string{"ID", "Title", "State", "Last Updated"},
					aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
					rows:    rows,
				}.render())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of items to list (0 for all)")
	return cmd
}

func describeLookupError(id string, err error) error {
	if services.Kind(err) == services.KindNotFound || isRemoteStatus(err, 404) {
		return fmt.Errorf("work item %s not found", strings.TrimSpace(id))
	}
	return err
}

func printWorkItemDetail(cmd *cobra.Command, detail *api.WorkItemDetail) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Work item %s: %s\n", detail.DevOpsID, detail.Title)
	fmt.Fprintf(out, "  Current state: %s\n", detail.CurrentState)
	fmt.Fprintf(out, "  Last updated:  %s\n", detail.LastUpdated)
	if detail.CreatedAt != "" {
		fmt.Fprintf(out, "  First seen:    %s\n", detail.CreatedAt)
	}
	if len(detail.Transitions) == 0 {
		fmt.Fprintln(out, "\nNo transitions recorded")
		return
	}
	rows := make([][]string, 0, len(detail.Transitions))
	for _, tr := range detail.Transitions {
		rows = append(rows, []string{tr.ChangedAt, tr.FromState, tr.ToState, tr.ChangedBy})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, tableView{
		title:   "Transitions",
		headers: []string{"Changed At", "From", "To", "Changed By"},
		rows:    rows,
	}.render())
}

func printTimeInState(cmd *cobra.Command, summary *api.TimeInState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Work item %s: %s (currently %s)\n", summary.DevOpsID, summary.Title, summary.CurrentState)
	if len(summary.StateTimesSeconds) == 0 {
		fmt.Fprintln(out, "No transitions recorded")
		return
	}

	states := slices.SortedFunc(maps.Keys(summary.StateTimesSeconds), func(a, b string) int {
		if c := cmp.Compare(summary.StateTimesSeconds[b], summary.StateTimesSeconds[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	var total float64
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		seconds := summary.StateTimesSeconds[state]
		total += seconds
		rows = append(rows, []string{state, formatSeconds(seconds), strconv.FormatFloat(seconds, 'f', 0, 64)})
	}
	fmt.Fprintln(out, tableView{
		headers: []string{"State", "Duration", "Seconds"},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		rows:    rows,
		footer:  []string{"Total", formatSeconds(total), strconv.FormatFloat(total, 'f', 0, 64)},
	}.render())
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Second {
		return "0s"
	}
	return d.String()
}
