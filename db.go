package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/davergrounds/galactic-empires/pkg/ledger"
)

// ledgerDSN adds WAL and busy-timeout options for on-disk databases. Each
// driver spells them differently.
func ledgerDSN(driver, path string) string {
	if strings.Contains(path, ":memory:") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if driver == "sqlite3" {
		return path + sep + "_journal_mode=WAL&_busy_timeout=5000"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// initLedger opens the turn ledger, or returns nil when it is disabled.
func initLedger() (*ledger.Ledger, error) {
	if !cfg.Ledger {
		InfoLog.Println("Turn ledger disabled")
		return nil, nil
	}

	if !strings.Contains(cfg.DBPath, ":memory:") {
		dir := filepath.Dir(strings.TrimPrefix(cfg.DBPath, "file:"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	l, err := ledger.Open(cfg.DBDriver, ledgerDSN(cfg.DBDriver, cfg.DBPath), InfoLog)
	if err != nil {
		return nil, err
	}
	InfoLog.Printf("Turn ledger on %s (%s)", cfg.DBPath, cfg.DBDriver)
	return l, nil
}
