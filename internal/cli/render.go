package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/railyardhq/railyard/internal/orchestrator"
)

// renderResults prints one row per repository in run order.
func renderResults(w io.Writer, results []orchestrator.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"REPOSITORY", "STATUS", "DETAIL", "PR"})
	for _, result := range results {
		t.AppendRow(table.Row{result.Repo, string(result.Status), result.Message, result.PRURL})
	}
	t.Render()
}

// errorFromResults turns hard failures into a command error so the exit code
// reflects them. Conflicts are not failures: the operator already chose how
// each one ended.
func errorFromResults(results []orchestrator.Result) error {
	failed := 0
	for _, result := range results {
		if result.Status == orchestrator.StatusError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("operation failed for %d of %d repositories", failed, len(results))
	}
	return nil
}
