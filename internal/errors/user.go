package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// A slice rather than a map because errors.Is() needs chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping
var errorInfoEntries = []errorEntry{
	{
		err: ErrWorkbookNotFound,
		info: ErrorInfo{
			Message: "A script, data, macro or plan file could not be found.",
			Action:  "Check the path, or the project script/data directories in your config.",
		},
	},
	{
		err: ErrWorkbookInvalid,
		info: ErrorInfo{
			Message: "A workbook file is not valid.",
			Action:  "Each workbook needs a 'sheets' list of {name, rows} entries.",
		},
	},
	{
		err: ErrSheetNotFound,
		info: ErrorInfo{
			Message: "A referenced sheet does not exist in the workbook.",
			Action:  "Check the --scenario/--sheet values against the sheet names in the file.",
		},
	},
	{
		err: ErrInvalidIterationDirective,
		info: ErrorInfo{
			Message: "The iteration directive in the data file is not valid.",
			Action:  "Use column numbers and ranges such as '1-3,5', or 'all'.",
		},
	},
	{
		err: ErrInvalidFlowControl,
		info: ErrorInfo{
			Message: "A step has an invalid flow control.",
			Action:  "Write flow controls as Directive(condition), e.g. SkipIf(${env} = prod).",
		},
	},
	{
		err: ErrPreflightFailed,
		info: ErrorInfo{
			Message: "One or more plan entries could not be validated.",
			Action:  "Fix the listed scripts or data files and run the plan again.",
		},
	},
	{
		err: ErrPlanEmpty,
		info: ErrorInfo{
			Message: "The plan has no enabled entries.",
			Action:  "Check the plan sheet names and the 'enabled' column.",
		},
	},
	{
		err: ErrExecutionFailed,
		info: ErrorInfo{
			Message: "Execution finished with failures.",
			Action:  "Inspect the iteration artifacts in the output directory.",
		},
	},
	{
		err: ErrInterrupted,
		info: ErrorInfo{
			Message: "Execution was interrupted.",
		},
	},
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "The configuration file was not found.",
			Action:  "Pass an existing file with --config or remove the flag.",
		},
	},
}

func getErrorInfo(err error) ErrorInfo {
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}
	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action. The action is empty when there is nothing the user can do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
