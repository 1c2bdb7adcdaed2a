package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"informer/internal/store"
	"informer/internal/store/model"
)

func newForwardTestCmd(opts *rootOptions) *cobra.Command {
	ft := &cobra.Command{
		Use:   "forwardtest",
		Short: "Inspect and grade forward-test (shadow) runs",
	}
	ft.AddCommand(newForwardTestListCmd(opts))
	ft.AddCommand(newForwardTestReportCmd(opts))
	ft.AddCommand(newForwardTestLogOutcomeCmd(opts))
	return ft
}

// withStore opens the app and hands its run store to fn.
func withStore(opts *rootOptions, fn func(st store.Store) error) error {
	a, cleanup, err := opts.open()
	defer cleanup()
	if err != nil {
		return err
	}
	st := a.Store()
	if st == nil {
		return fmt.Errorf("run log disabled (store.enabled=false)")
	}
	return fn(st)
}

func newForwardTestListCmd(opts *rootOptions) *cobra.Command {
	var q store.ForwardTestQuery
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List forward-test rows by NY trade date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(st store.Store) error {
				rows, err := listForwardTests(cmd.Context(), st, q)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderForwardTests(rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.From, "from", "", "first trade date (YYYY-MM-DD, New York)")
	cmd.Flags().StringVar(&q.To, "to", "", "last trade date (YYYY-MM-DD, New York)")
	cmd.Flags().StringVar(&q.Action, "action", "", "TRADE, NO_TRADE or NOT_READY")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	return cmd
}

func newForwardTestReportCmd(opts *rootOptions) *cobra.Command {
	var q store.ForwardTestQuery
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize forward-test decisions and logged outcomes as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(st store.Store) error {
				rows, err := listForwardTests(cmd.Context(), st, q)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), store.Summarize(q, rows))
			})
		},
	}
	cmd.Flags().StringVar(&q.From, "from", "", "first trade date (YYYY-MM-DD, New York)")
	cmd.Flags().StringVar(&q.To, "to", "", "last trade date (YYYY-MM-DD, New York)")
	return cmd
}

func newForwardTestLogOutcomeCmd(opts *rootOptions) *cobra.Command {
	var (
		runID    string
		in       store.OutcomeInput
		entry    float64
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "log-outcome",
		Short: "Record the realized exit of a TRADE run",
		Example: `  informer forwardtest log-outcome --run-id 2025-03-14-am --exit 103.2
  informer forwardtest log-outcome --run-id 2025-03-14-am --entry 100.05 --exit 98 --duration 25m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("entry") {
				in.Entry = &entry
			}
			if cmd.Flags().Changed("duration") {
				secs := int64(duration / time.Second)
				in.DurationSeconds = &secs
			}
			return withStore(opts, func(st store.Store) error {
				row, warnings, err := logOutcome(cmd.Context(), st, runID, in, time.Now())
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), noTradeStyle.Render("warning: ")+w)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderForwardTests([]model.ForwardTestModel{*row}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id of the TRADE decision")
	cmd.Flags().Float64Var(&in.Exit, "exit", 0, "realized exit price")
	cmd.Flags().Float64Var(&entry, "entry", 0, "realized entry price (planned entry when omitted)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "time in the trade")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("exit")
	return cmd
}

func listForwardTests(ctx context.Context, st store.Store, q store.ForwardTestQuery) ([]model.ForwardTestModel, error) {
	uow, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.ForwardTests().List(ctx, q)
}

// logOutcome grades the forward-test row of runID and stores the result in
// one transaction.
func logOutcome(ctx context.Context, st store.Store, runID string, in store.OutcomeInput, now time.Time) (*model.ForwardTestModel, []string, error) {
	uow, err := st.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()
	row, err := uow.ForwardTests().FindByRunID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := store.GradeOutcome(row, in, now)
	if err != nil {
		return nil, nil, err
	}
	if err := uow.ForwardTests().SaveOutcome(ctx, row); err != nil {
		return nil, nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, err
	}
	return row, warnings, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
