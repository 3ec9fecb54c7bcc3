package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func main() {
	repair := flag.Bool("repair", false, "Rewrite drifted vendor balances and product stock")
	check := flag.String("check", "all", "Which check to run: all, vendors or stock")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	ctx := context.Background()

	var result *models.ReconciliationResult
	var err error
	switch strings.ToLower(strings.TrimSpace(*check)) {
	case "all":
		result, err = workflow.RunLedgerReconciliation(ctx, logger, *repair)
	case "vendors":
		result, err = models.ReconcileVendorBalances(ctx, *repair)
	case "stock":
		result, err = models.ReconcileProductStock(ctx, *repair)
	default:
		fmt.Fprintf(os.Stderr, "unknown --check %q\n", *check)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	// drift left behind is a failure for cron callers
	if len(result.Drifts) > result.Repaired {
		os.Exit(2)
	}
}
