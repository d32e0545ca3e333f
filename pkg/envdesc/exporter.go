package envdesc

import (
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"time"

	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/errors"
)

// Exporter writes a description of the active environment to w.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc func(ctx context.Context, w io.Writer) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// DefaultExportCommand dumps the active conda environment.
var DefaultExportCommand = []string{"conda", "env", "export"}

// CommandExporter runs an external command and captures its stdout
// verbatim.
type CommandExporter struct {
	Argv    []string
	Timeout time.Duration

	builder *command.SafeBuilder
}

// NewCommandExporter creates an exporter for argv. A nil builder uses the
// real executor.
func NewCommandExporter(argv []string, builder *command.SafeBuilder) *CommandExporter {
	if len(argv) == 0 {
		argv = DefaultExportCommand
	}
	if builder == nil {
		builder = command.NewSafeBuilder()
	}
	return &CommandExporter{
		Argv:    append([]string{}, argv...),
		builder: builder,
	}
}

// Export runs the command. A missing program or a non-zero exit is an
// ENV_EXPORT_FAILED error.
func (e *CommandExporter) Export(ctx context.Context, w io.Writer) error {
	if len(e.Argv) == 0 {
		return errors.EnvExportFailed(e.Argv, stderrors.New("no export command configured"))
	}

	cmd, err := e.builder.Build(ctx, e.Argv[0], e.Argv[1:]...)
	if err != nil {
		return errors.EnvExportFailed(e.Argv, err)
	}
	if e.Timeout > 0 {
		cmd.WithTimeout(e.Timeout)
	}

	if err := cmd.RunTo(w); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return errors.EnvExportFailed(e.Argv, errors.CommandNotFound(e.Argv[0], err))
		}
		return errors.EnvExportFailed(e.Argv, errors.CommandFailed(cmd.String(), err))
	}
	return nil
}
