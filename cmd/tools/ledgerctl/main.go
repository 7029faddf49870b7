// Command ledgerctl backs up, restores and inspects ledger tables.
//
//	ledgerctl [-tables Sales,Visits] [-dry-run] backup|restore|tables
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/app"
	"github.com/noah-isme/backend-fieldsales/internal/config"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

func main() {
	var (
		tablesList = flag.String("tables", "", "comma separated list of tables; defaults to every ledger table")
		dryRun     = flag.Bool("dry-run", false, "print the operations without touching the store")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ledgerctl [flags] backup|restore|tables\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	schemas, err := resolveTables(*tablesList)
	if err != nil {
		log.Fatal(err)
	}

	if *dryRun {
		for _, s := range schemas {
			log.Printf("would %s %s on the %s store", command, s.Table, cfg.StoreBackend)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "ledgerctl").Logger()
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	defer closeStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	if err := run(ctx, store.Ledger, command, schemas); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, adapter *ledger.Adapter, command string, schemas []ledger.Schema) error {
	switch command {
	case "backup":
		for _, s := range schemas {
			name, err := adapter.BackupTable(ctx, s)
			if err != nil {
				return fmt.Errorf("backup %s: %w", s.Table, err)
			}
			log.Printf("backed up %s to %s", s.Table, name)
		}
	case "restore":
		for _, s := range schemas {
			name, err := adapter.RestoreLatestBackup(ctx, s)
			if err != nil {
				return fmt.Errorf("restore %s: %w", s.Table, err)
			}
			log.Printf("restored %s from %s", s.Table, name)
		}
	case "tables":
		for _, s := range schemas {
			backups, err := adapter.ListBackups(ctx, s.Table)
			if err != nil {
				return fmt.Errorf("list backups of %s: %w", s.Table, err)
			}
			fmt.Printf("%s\t%d columns\t%d backups\n", s.Table, len(s.Columns), len(backups))
			for _, b := range backups {
				fmt.Printf("  %s\n", b)
			}
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func resolveTables(list string) ([]ledger.Schema, error) {
	if strings.TrimSpace(list) == "" {
		return app.Tables(), nil
	}
	index := app.TableIndex()
	var out []ledger.Schema
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown table %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
