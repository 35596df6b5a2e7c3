package cli

import "github.com/valter-silva-au/taskledger/internal/core"

// Process exit codes.
const (
	ExitOK         = 0
	ExitFatal      = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConflict   = 4
)

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	switch core.ErrorClass(err) {
	case 0:
		return ExitOK
	case core.ClassBadRequest:
		return ExitValidation
	case core.ClassNotFound:
		return ExitNotFound
	case core.ClassConflict:
		return ExitConflict
	default:
		return ExitFatal
	}
}
