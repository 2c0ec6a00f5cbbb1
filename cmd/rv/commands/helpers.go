// Package commands implements the rv CLI verbs. Each verb group parses its
// own flags with the standard flag package; argument mistakes surface as
// UsageError so main can exit 2.
package commands

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// UsageError marks bad command-line input.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// AsUsageError is errors.As with the concrete type fixed.
func AsUsageError(err error, target **UsageError) bool {
	return errors.As(err, target)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)
