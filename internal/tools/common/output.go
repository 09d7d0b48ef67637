package common

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/mahamart/commerce-backend/internal/observability"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, title string, details []string, err error) {
	writeCIResult(os.Stdout, ok, title, details, err)
}

func writeCIResult(w io.Writer, ok bool, title string, details []string, err error) {
	result := CIResult{OK: ok, Title: title, Details: details}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// Action is one tool command body. It returns human-readable detail lines.
type Action func(ctx context.Context) ([]string, error)

// Interactive renders an action for a terminal.
type Interactive func(title string, timeout time.Duration, action Action) ([]string, error)

// Run executes action either with CI JSON output or through interactive, and
// records the outcome under tool/command.
func Run(tool, command string, ci bool, timeout time.Duration, interactive Interactive, action Action) error {
	title := tool + " " + command
	var err error
	if ci || interactive == nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		var details []string
		details, err = action(ctx)
		cancel()
		writeCIResult(os.Stdout, err == nil, title, details, err)
	} else {
		_, err = interactive(title, timeout, action)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordToolCommandRun(context.Background(), tool, command, outcome)
	return err
}
