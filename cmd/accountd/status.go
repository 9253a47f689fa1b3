// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/store"
)

// ServiceStatus holds the status information the status command reports.
type ServiceStatus struct {
	Database          string `json:"database"`
	Reachable         bool   `json:"reachable"`
	MigrationVersion  uint   `json:"migration_version"`
	MigrationName     string `json:"migration_name,omitempty"`
	Dirty             bool   `json:"dirty"`
	PendingMigrations []uint `json:"pending_migrations,omitempty"`
	Error             string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and schema status",
		Long:  `Check that the configured database is reachable and report the migration state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	status := queryStatus(cmd.Context(), appCfg.Database.URL)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

func queryStatus(ctx context.Context, databaseURL string) ServiceStatus {
	status := ServiceStatus{Database: redactedURL(databaseURL)}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer pool.Close()
	status.Reachable = true

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer migrator.Close() //nolint:errcheck // status is read-only

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.MigrationVersion = version
	status.Dirty = dirty

	if version > 0 {
		if name, err := store.MigrationName(version); err == nil {
			status.MigrationName = name
		}
	}

	if pending, err := migrator.PendingMigrations(); err == nil {
		status.PendingMigrations = pending
	}

	return status
}

// redactedURL strips everything before the host so credentials never land
// in command output.
func redactedURL(databaseURL string) string {
	for i := len(databaseURL) - 1; i >= 0; i-- {
		if databaseURL[i] == '@' {
			return "..." + databaseURL[i:]
		}
	}
	return databaseURL
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintln(w, "-----\t-----")
	_, _ = fmt.Fprintf(w, "database\t%s\n", status.Database)

	if !status.Reachable {
		_, _ = fmt.Fprintf(w, "reachable\tno (%s)\n", status.Error)
		_ = w.Flush()
		return string(buf)
	}

	_, _ = fmt.Fprintln(w, "reachable\tyes")
	if status.MigrationVersion == 0 {
		_, _ = fmt.Fprintln(w, "schema\tno migrations applied")
	} else {
		_, _ = fmt.Fprintf(w, "schema\tversion %d (%s)\n", status.MigrationVersion, status.MigrationName)
	}
	if status.Dirty {
		_, _ = fmt.Fprintln(w, "dirty\tyes - manual intervention required")
	}
	if len(status.PendingMigrations) > 0 {
		_, _ = fmt.Fprintf(w, "pending\t%v\n", status.PendingMigrations)
	} else {
		_, _ = fmt.Fprintln(w, "pending\tnone")
	}

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
