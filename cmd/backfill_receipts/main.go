package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/app"
	types "github.com/yungbote/entitlement-engine/internal/domain"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var ids idList
	var dryRun bool
	var limit int
	flag.Var(&ids, "tx", "transaction id to backfill (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "print transactions missing a receipt without generating one")
	flag.IntVar(&limit, "limit", 200, "limit number of transactions processed")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	ledger := application.Repos.Ledger

	var rows []*types.Transaction
	if len(ids) > 0 {
		for _, s := range ids {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil || id == uuid.Nil {
				fmt.Printf("skipping invalid transaction id %q\n", s)
				continue
			}
			row, err := ledger.GetByID(ctx, nil, id)
			if err != nil {
				fmt.Printf("load transaction %s: %v\n", id, err)
				os.Exit(1)
			}
			if row == nil {
				fmt.Printf("transaction %s not found\n", id)
				continue
			}
			rows = append(rows, row)
		}
	} else {
		rows, err = ledger.ListMissingReceipts(ctx, nil, limit)
		if err != nil {
			fmt.Printf("list transactions: %v\n", err)
			os.Exit(1)
		}
	}

	generated := 0
	for _, row := range rows {
		if row.ReceiptRef != "" {
			continue
		}
		if dryRun {
			fmt.Printf("[dry-run] receipt missing transaction_id=%s provider=%s ref=%s\n", row.ID, row.Provider, row.ProviderRef)
			continue
		}
		ref, err := application.Services.Receipt.Synthesize(ctx, row)
		if err != nil {
			fmt.Printf("receipt failed for transaction %s: %v\n", row.ID, err)
			continue
		}
		generated++
		fmt.Printf("stored receipt %s for transaction_id=%s\n", ref, row.ID)
	}

	fmt.Printf("done; generated=%d\n", generated)
}
