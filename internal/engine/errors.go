package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDatasetUnavailable means the source file is missing or unreadable.
	ErrDatasetUnavailable = errors.New("dataset unavailable")

	// ErrEmptySheet means the sheet has no header row.
	ErrEmptySheet = errors.New("worksheet is empty")
)

// SheetNotFoundError is returned when the workbook lacks the requested sheet.
type SheetNotFoundError struct {
	Path      string
	Sheet     string
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("sheet %q not found in %s", e.Sheet, e.Path)
	}
	return fmt.Sprintf("sheet %q not found in %s (available sheets: %s)", e.Sheet, e.Path, quoteList(e.Available))
}

// MissingColumnError is returned when required dimension columns are absent.
type MissingColumnError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required columns missing: %s (available columns: %s)", quoteList(e.Missing), quoteList(e.Available))
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
