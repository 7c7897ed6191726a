package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/eshaffer321/ledgerwatch/internal/application/service"
)

// RunPass runs the pass named by flags once and prints its summary to out.
// Without -confirm an import only reports what would be written.
func RunPass(ctx context.Context, svc *service.ReconcileService, flags *PassFlags, out io.Writer) error {
	PrintHeader(out, flags.Pass, flags.UserID)

	switch flags.Pass {
	case "transfers":
		result, err := svc.RunTransferDetection(ctx, flags.UserID)
		if err != nil {
			return err
		}
		PrintTransfers(out, result)

	case "subscriptions":
		summary, err := svc.ScanAndUpdateSubscriptions(ctx, flags.UserID)
		if err != nil {
			return err
		}
		PrintSubscriptions(out, summary)

	case "statuses":
		result, err := svc.UpdateSubscriptionStatuses(ctx, flags.UserID)
		if err != nil {
			return err
		}
		PrintStatuses(out, result)

	case "insights":
		insights, err := svc.SubscriptionInsights(ctx, flags.UserID)
		if err != nil {
			return err
		}
		PrintInsights(out, insights)

	case "upcoming":
		due, err := svc.UpcomingBills(ctx, flags.UserID, flags.Days)
		if err != nil {
			return err
		}
		PrintUpcoming(out, due)

	case "alerts":
		result, err := svc.RunAlertCheck(ctx, flags.UserID)
		if err != nil {
			return err
		}
		PrintAlerts(out, result)

	case "import":
		return runImport(ctx, svc, flags, out)

	default:
		return fmt.Errorf("unknown pass %q", flags.Pass)
	}
	return nil
}

func runImport(ctx context.Context, svc *service.ReconcileService, flags *PassFlags, out io.Writer) error {
	f, err := os.Open(flags.File)
	if err != nil {
		return fmt.Errorf("failed to open statement: %w", err)
	}
	defer f.Close()

	batch, parsed, err := svc.ImportStatement(ctx, flags.UserID, flags.AccountID, f)
	if err != nil {
		return err
	}
	PrintBatch(out, batch, parsed)

	if !flags.Confirm {
		fmt.Fprintln(out, "\nDry run: pass -confirm to import the selected rows.")
		return nil
	}
	result, err := svc.ConfirmImport(ctx, batch)
	if err != nil {
		return err
	}
	PrintConfirm(out, result)
	return nil
}
