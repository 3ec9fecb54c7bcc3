package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/sirupsen/logrus"
)

// RunLedgerReconciliation checks cached vendor balances and product stock against their
// source records, repairing drift when asked.
func RunLedgerReconciliation(ctx context.Context, logger *logrus.Logger, repair bool) (*models.ReconciliationResult, error) {
	result, err := models.RunReconciliationChecks(ctx, repair)
	if err != nil {
		if logger != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RunLedgerReconciliation", "running checks", repair, err)
		}
		return result, err
	}
	if logger != nil && len(result.Drifts) > 0 {
		logger.WithFields(logrus.Fields{
			"field":          "LedgerReconciliation",
			"correlation_id": result.CorrelationId,
			"drifts":         len(result.Drifts),
			"repaired":       result.Repaired,
		}).Warn("ledger drift detected")
	}
	return result, nil
}

// RunPeriodicReconciliation repairs drift every interval until ctx is done.
func RunPeriodicReconciliation(ctx context.Context, logger *logrus.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = RunLedgerReconciliation(ctx, logger, true)
		}
	}
}
