package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/billing"
)

func newBillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bill QUARTER_START OUT_DIR",
		Short: "Write the bills and summary of a quarter",
		Long: `Bills every project billable in the quarter starting QUARTER_START (YYYY-MM-DD).
One LaTeX bill per project and a summary CSV are written to OUT_DIR.
Nothing is written if any project fails to bill.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := parseDateArg("QUARTER_START", args[0])
			if err != nil {
				return err
			}
			svc, err := a.billingService()
			if err != nil {
				return err
			}
			run, err := svc.WriteQuarter(cmd.Context(), qs, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "billed %d projects for %s to %s into %s\n",
				len(run.Records),
				run.QuarterStart.Format(time.DateOnly),
				run.QuarterEnd.Format(time.DateOnly),
				args[1])
			return nil
		},
	}
}

func newCountUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count-users START END OUT_PATH",
		Short: "List the power users of every project over a date window",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateArg("START", args[0])
			if err != nil {
				return err
			}
			end, err := parseDateArg("END", args[1])
			if err != nil {
				return err
			}
			if end.Before(start) {
				return fmt.Errorf("%w: END precedes START", billing.ErrInvalidInput)
			}
			svc, err := a.billingService()
			if err != nil {
				return err
			}
			entries, err := svc.PowerUsers(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			f, err := os.Create(args[2])
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := billing.WritePowerUsers(f, entries); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d power users written to %s\n", len(entries), args[2])
			return nil
		},
	}
}

func parseDateArg(name, value string) (time.Time, error) {
	d, err := calendar.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD: %v", billing.ErrInvalidInput, name, err)
	}
	return d, nil
}
