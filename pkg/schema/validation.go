package schema

import (
	"fmt"
	"io"
)

// ValidationSeverity tells blocking issues from advisory ones.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one lint finding. Path points into the document
// ("cells[fetch].data.code"); Code is one of the ErrCode constants.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%-7s %s [%s] %s", i.Severity, i.Path, i.Code, i.Message)
}

// ValidationResult collects the findings of every lint stage.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

// Merge appends other's findings; nil is a no-op.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// WriteTo prints warnings then errors, one per line.
func (r *ValidationResult) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, list := range [][]ValidationIssue{r.Warnings, r.Errors} {
		for _, issue := range list {
			m, err := fmt.Fprintln(w, issue.String())
			n += int64(m)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// ToError returns nil when valid. Otherwise the FlowError carries the shared
// code of all errors (so a graph whose only problem is a dangling edge fails
// with DANGLING_EDGE) or VALIDATION_ERROR when the codes differ.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	code := r.Errors[0].Code
	for _, issue := range r.Errors[1:] {
		if issue.Code != code {
			code = ErrCodeValidation
			break
		}
	}
	if code == "" {
		code = ErrCodeValidation
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("graph has %d errors, first: %s", len(r.Errors), r.Errors[0].Message)
	}

	return NewError(code, msg).WithDetails(map[string]any{
		"error_count":   len(r.Errors),
		"warning_count": len(r.Warnings),
		"errors":        r.Errors,
		"warnings":      r.Warnings,
	})
}
