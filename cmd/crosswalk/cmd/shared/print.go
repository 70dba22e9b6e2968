// Package shared holds helpers used by several crosswalk commands.
package shared

import (
	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/internal/output"
)

// Format resolves the application's output format.
func Format(app application.Application) (output.Format, error) {
	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return "", err
	}
	return output.DetectFormat(string(format)), nil
}

// Machine reports whether results should be printed as JSON or YAML values
// rather than display tables.
func Machine(app application.Application) bool {
	format, err := Format(app)
	return err == nil && (format == output.FormatJSON || format == output.FormatYAML)
}

// Print renders data in the application's output format.
func Print(app application.Application, data any) error {
	format, err := Format(app)
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(app.Out(), data)
}
