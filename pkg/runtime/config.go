package runtime

import (
	"fmt"

	"go.uber.org/multierr"
)

// Config selects the entry point and the driving mode of one execution.
type Config struct {
	// Entry is the qualified name of a zero-arity function to evaluate.
	Entry string
	// ShowGraphLevel selects graph tracing: 0 none, 1 a snapshot after each
	// result, 2 a snapshot after each reduction step, 3 like 2 with full
	// node detail in labels.
	ShowGraphLevel int
	// ViewerCommand, when set, names an external program invoked on every
	// snapshot file written by the caller.
	ViewerCommand string
	// Interactive pauses for confirmation after each result.
	Interactive bool
	// Verbosity gates the reporting collaborator, 0 (quiet) to 3 (debug).
	Verbosity int
}

// Validate reports every configuration problem at once. Execution never
// starts on an invalid configuration.
func (c Config) Validate() error {
	var err error
	if c.Entry == "" {
		err = multierr.Append(err, fmt.Errorf("entry function name must not be empty"))
	}
	if c.ShowGraphLevel < 0 || c.ShowGraphLevel > 3 {
		err = multierr.Append(err, fmt.Errorf("show-graph level %d out of range 0..3", c.ShowGraphLevel))
	}
	if c.Verbosity < 0 || c.Verbosity > 3 {
		err = multierr.Append(err, fmt.Errorf("verbosity %d out of range 0..3", c.Verbosity))
	}
	if c.ViewerCommand != "" && c.ShowGraphLevel == 0 {
		err = multierr.Append(err, fmt.Errorf("viewer command requires show-graph level > 0"))
	}
	return err
}
