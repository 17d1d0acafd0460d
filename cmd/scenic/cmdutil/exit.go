// Package cmdutil holds helpers shared by the scenic subcommands.
package cmdutil

import "fmt"

// ExitError carries a process exit code through cobra's error return.
// The run command uses it so that verdict outcomes map to exit codes
// without printing a redundant error line.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Exit wraps a non-zero verdict exit code. Zero returns nil so a clean
// run flows through cobra normally.
func Exit(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}
