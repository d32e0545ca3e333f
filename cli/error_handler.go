package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/tui/theme"
	"github.com/spf13/cobra"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints err with a hint chosen by its code and returns it.
func (h *ErrorHandler) Handle(err error) error {
	t := theme.DefaultTheme
	fmt.Fprintf(h.Out, "%s %v\n", t.Error.Render("Error:"), err)

	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(h.Out, t.Muted.Render(hint))
	}

	if h.Verbose {
		if provErr, ok := errors.As(err); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", provErr.ToJSON())
		}
	}
	return err
}

func hintFor(err error) string {
	provErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if provErr == nil {
			return ""
		}
		return provErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeRevisionChanged:
		return fmt.Sprintf("HEAD moved from %v to %v while the artifact was produced. Re-run from a stable checkout.",
			detail("start_revision"), detail("end_revision"))
	case errors.ErrCodeArtifactMissing:
		return "The work finished but did not produce the artifact. Check the --artifact path."
	case errors.ErrCodeEnvNameUnset:
		return fmt.Sprintf("Activate an environment or set %v (environment.name_var in prov.yml).", detail("variable"))
	case errors.ErrCodeEnvExportFailed:
		return "The environment export command failed. Set environment.export_command in prov.yml."
	case errors.ErrCodeHashMismatch:
		return "The artifact's bytes changed after its metadata was recorded."
	case errors.ErrCodeRecordInvalid:
		return "The file is not a valid provenance record. See 'prov schema'."
	case errors.ErrCodeConfigNotFound, errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		return "Check prov.yml. 'prov config' prints the merged configuration and 'prov schema config' its schema."
	case errors.ErrCodeCommandNotFound:
		return fmt.Sprintf("Required command not found: %v", detail("command"))
	default:
		return ""
	}
}

// Execute runs root and reports any error through the ErrorHandler. It
// returns the process exit code.
func Execute(root *cobra.Command) int {
	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = root
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	NewErrorHandler(verbose, cmd.ErrOrStderr()).Handle(err)
	if errors.GetCode(err) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), theme.DefaultTheme.Muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
	}
	return 1
}
