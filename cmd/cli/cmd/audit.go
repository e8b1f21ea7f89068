// Package cmd - CLI command: fibre-cost audit
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fibre-cost/core/output"
	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
)

var (
	auditLimit  int
	auditStatus string
	auditActor  string
	auditNotes  string
	auditDays   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail and review workflow commands",
	Long: `Commands for listing committed estimates, moving them through the
review workflow (DRAFT, PENDING_REVIEW, REVIEWED, APPROVED, REJECTED) and
summarizing review activity.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAuditList,
}

var auditGetCmd = &cobra.Command{
	Use:   "get <request-id>",
	Short: "Show one audit record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditGet,
}

var auditStatusCmd = &cobra.Command{
	Use:   "status <request-id> <status>",
	Short: "Move an audit record through the review workflow",
	Long: `Set the review status of an audit record.

REVIEWED and PENDING_REVIEW record the actor as reviewer; APPROVED records
the actor as approver. Notes are appended to the record.

Examples:
  fibre-cost audit status 6c1f... reviewed --actor alice
  fibre-cost audit status 6c1f... approved --actor bob --notes "within budget"`,
	Args: cobra.ExactArgs(2),
	RunE: runAuditStatus,
}

var auditAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize audit records over a trailing window",
	Args:  cobra.NoArgs,
	RunE:  runAuditAnalytics,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditGetCmd, auditStatusCmd, auditAnalyticsCmd)

	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 0, "maximum records to list")
	auditListCmd.Flags().StringVar(&auditStatus, "status", "", "only list records in this status")

	auditStatusCmd.Flags().StringVar(&auditActor, "actor", "", "reviewer or approver name")
	auditStatusCmd.Flags().StringVar(&auditNotes, "notes", "", "notes appended to the record")

	auditAnalyticsCmd.Flags().IntVar(&auditDays, "days", 0, "trailing window in days (default 30)")
}

func runAuditList(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if a.Audit == nil {
		return errAuditDisabled
	}

	var records []*types.AuditRecord
	if auditStatus != "" {
		status, ok := types.ParseAuditStatus(auditStatus)
		if !ok {
			return ferrors.Input(fmt.Sprintf("unknown audit status %q", auditStatus))
		}
		records, err = a.Audit.ListByStatus(ctx, status, auditLimit)
	} else {
		records, err = a.Audit.List(ctx, auditLimit)
	}
	if err != nil {
		return err
	}
	return f.AuditList(cmd.OutOrStdout(), records)
}

func runAuditGet(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if a.Audit == nil {
		return errAuditDisabled
	}

	rec, err := a.Audit.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return f.AuditRecord(cmd.OutOrStdout(), rec)
}

func runAuditStatus(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if a.Audit == nil {
		return errAuditDisabled
	}

	rec, err := a.Audit.UpdateStatus(ctx, args[0], args[1], auditActor, auditNotes)
	if err != nil {
		return err
	}
	if f.Format() == output.FormatCLI {
		newWriter(cmd.OutOrStdout()).Success("%s is now %s", rec.RequestID, rec.Status)
	}
	return f.AuditRecord(cmd.OutOrStdout(), rec)
}

func runAuditAnalytics(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if a.Audit == nil {
		return errAuditDisabled
	}

	stats, err := a.Audit.Analytics(ctx, auditDays)
	if err != nil {
		return err
	}
	return f.Analytics(cmd.OutOrStdout(), stats)
}

var errAuditDisabled = ferrors.Config("audit store is disabled (audit.driver is none)")
