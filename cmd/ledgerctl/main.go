package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderledger/internal/audit"
	"github.com/angelmondragon/orderledger/internal/credit"
	"github.com/angelmondragon/orderledger/internal/cron"
	"github.com/angelmondragon/orderledger/internal/orders"
	"github.com/angelmondragon/orderledger/pkg/config"
	"github.com/angelmondragon/orderledger/pkg/db"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/outbox"
	"github.com/angelmondragon/orderledger/pkg/redis"
)

func main() {
	cmd := flag.String("cmd", "verify", "command: verify|rebuild|credit|last-audit|dead-events")
	customerID := flag.String("customer", "", "customer id (for credit)")
	orderID := flag.String("order", "", "limit rebuild to one order id")
	amount := flag.String("amount", "", "additional amount to test against the credit limit")
	limit := flag.Int("limit", 50, "max rows for dead-events")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "ledgerctl"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "ledgerctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if *cmd == "last-audit" {
		printLastAudit(ctx, cfg, logg)
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	events := outbox.NewRepository(dbClient.DB())
	repo := orders.NewRepository(dbClient.DB(), outbox.NewService(events, logg))
	store, err := orders.NewGormUnitOfWork(dbClient, repo)
	requireResource(logg, "unit of work", err)

	switch *cmd {
	case "verify", "rebuild":
		verifier, err := audit.NewVerifier(store, logg, nil)
		requireResource(logg, "verifier", err)

		var report audit.Report
		switch {
		case *cmd == "verify":
			report, err = verifier.Verify(ctx)
		case *orderID != "":
			report, err = verifier.RebuildOrder(ctx, mustUUID("order", *orderID))
		default:
			report, err = verifier.Rebuild(ctx)
		}
		if err != nil {
			fail("%s failed: %v", *cmd, err)
		}
		printJSON(report)
		if !report.Clean() && !report.Repaired {
			os.Exit(2)
		}

	case "credit":
		checker, err := credit.NewChecker(store)
		requireResource(logg, "credit checker", err)
		id := mustUUID("customer", *customerID)

		status, err := checker.CheckCreditLimit(ctx, id)
		if err != nil {
			fail("credit check failed: %v", err)
		}
		out := map[string]any{"status": status}
		if *amount != "" {
			extra, err := decimal.NewFromString(*amount)
			if err != nil {
				fail("invalid -amount %q: %v", *amount, err)
			}
			ok, err := checker.CanCharge(ctx, id, extra)
			if err != nil {
				fail("credit check failed: %v", err)
			}
			out["can_charge"] = ok
		}
		printJSON(out)

	case "dead-events":
		rows, err := events.ListTerminal(ctx, cfg.Outbox.MaxAttempts, *limit)
		if err != nil {
			fail("list dead events: %v", err)
		}
		printJSON(rows)

	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

// printLastAudit prints the summary the cron worker stored after its last
// derived audit.
func printLastAudit(ctx context.Context, cfg *config.Config, logg *logger.Logger) {
	client, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer client.Close()

	raw, err := client.Get(ctx, client.ReportKey("derived-audit"))
	if errors.Is(err, goredis.Nil) {
		fail("no audit summary stored yet")
	}
	if err != nil {
		fail("read audit summary: %v", err)
	}
	var summary cron.AuditSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		fail("decode audit summary: %v", err)
	}
	printJSON(summary)
	if !summary.Clean && !summary.Report.Repaired {
		os.Exit(2)
	}
}

func mustUUID(flagName, value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		fail("invalid -%s %q: %v", flagName, value, err)
	}
	return id
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("encode output: %v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
