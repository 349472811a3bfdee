// pattern: Functional Core

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"projsync/internal/logging"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes a human-readable pass summary.
func printReport(w io.Writer, report *reconcile.Report) {
	if report.Result != nil {
		c := report.Result.Counts()
		fmt.Fprintf(w, "Pass %s: %d orphaned, %d mismatched, %d unregistered\n",
			shortID(report.Result.ID), c.Orphaned, c.Mismatched, c.Unregistered)
	}
	if len(report.Mutations) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}

	if report.DryRun {
		fmt.Fprintln(w, "Planned changes:")
		for _, m := range report.Mutations {
			fmt.Fprintf(w, "  %s\n", m)
		}
		return
	}

	for _, o := range report.Outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "  failed: %s: %s\n", o.Mutation, o.Error)
			continue
		}
		fmt.Fprintf(w, "  %s\n", o.Mutation)
	}
	s := report.Summary
	fmt.Fprintf(w, "%d deleted, %d renamed, %d registered, %d failed\n", s.Deleted, s.Renamed, s.Registered, s.Failed)
}

// printRecords writes one line per record.
func printRecords(w io.Writer, recs []registry.Record) {
	for _, r := range recs {
		marker := " "
		if !r.DirExists {
			marker = "!"
		}
		fmt.Fprintf(w, "%s %4d  %-24s %s\n", marker, r.ID, r.Name, r.RelativePath)
	}
}

// printEntries writes log entries one per line, without color codes.
func printEntries(w io.Writer, entries []logging.LogEntry) {
	for _, e := range entries {
		fmt.Fprintln(w, StripANSI(e.String()))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
