package reconcile

import (
	"fmt"
	"io"
	"sort"
)

// WriteReport prints a run summary. Matched users are listed sorted by
// username then id so the output is stable for equal inputs; duplicate
// matches are annotated rather than collapsed, since they translate into
// extra writes the operator should know about.
func WriteReport(w io.Writer, result *Result, dryRun bool) {
	action := "deactivated"
	if dryRun {
		action = "matched for deactivation (dry run, no changes applied)"
	}

	fmt.Fprintf(w, "Directory users:          %d\n", result.DirectoryUsers)
	fmt.Fprintf(w, "Active StoredSafe users:  %d\n", result.ActiveTargets)
	fmt.Fprintf(w, "Users %s: %d\n", action, len(result.Matched))

	if len(result.Matched) == 0 {
		return
	}

	counts := make(map[string]int, len(result.Matched))
	order := make([]string, 0, len(result.Matched))
	names := make(map[string]string, len(result.Matched))
	for _, user := range result.Matched {
		if counts[user.ID] == 0 {
			order = append(order, user.ID)
			names[user.ID] = user.Username
		}
		counts[user.ID]++
	}
	sort.Slice(order, func(i, j int) bool {
		if names[order[i]] != names[order[j]] {
			return names[order[i]] < names[order[j]]
		}
		return order[i] < order[j]
	})

	fmt.Fprintln(w)
	for _, id := range order {
		line := fmt.Sprintf("  %s (%s)", names[id], id)
		if counts[id] > 1 {
			line += fmt.Sprintf("  matched %d times", counts[id])
		}
		fmt.Fprintln(w, line)
	}
}
