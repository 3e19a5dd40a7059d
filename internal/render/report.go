package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sourceplane/liteflow/internal/model"
)

// WriteReport prints the per-job terminal statuses and a summary line.
func WriteReport(w io.Writer, rep *model.RunReport) {
	fmt.Fprintf(w, "\nRun %s\n", rep.RunID)

	for _, res := range rep.Results {
		switch res.Status {
		case "Succeeded":
			switch {
			case rep.DryRun:
				fmt.Fprintf(w, "  ✓ %s (dry run)\n", res.JobID)
			case res.Duration > 0:
				fmt.Fprintf(w, "  ✓ %s (%s)\n", res.JobID, res.Duration.Round(10*time.Millisecond))
			default:
				fmt.Fprintf(w, "  ✓ %s\n", res.JobID)
			}
		case "Skipped":
			fmt.Fprintf(w, "  □ %s (up to date)\n", res.JobID)
		case "Failed":
			fmt.Fprintf(w, "  ✗ %s: %s\n", res.JobID, res.Error)
		case "BlockedByUpstream":
			if res.Cause != "" {
				fmt.Fprintf(w, "  ✗ %s (blocked by %s)\n", res.JobID, res.Cause)
			} else {
				fmt.Fprintf(w, "  ✗ %s (%s)\n", res.JobID, res.Reason)
			}
		default:
			fmt.Fprintf(w, "  ? %s (%s)\n", res.JobID, res.Status)
		}
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d succeeded", rep.Succeeded))
	if rep.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d up to date", rep.Skipped))
	}
	if rep.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", rep.Failed))
	}
	if rep.Blocked > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", rep.Blocked))
	}
	fmt.Fprintf(w, "\n%s\n", strings.Join(parts, ", "))
}
