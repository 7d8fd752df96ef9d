package spreadsheet

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of these.
var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrInvalidRange         = errors.New("invalid range")
	ErrSheetNotFound        = errors.New("sheet not found")
	ErrDocumentNotOpen      = errors.New("document not open")
	ErrUnsupportedValueType = errors.New("unsupported value type")
	ErrStyleLookup          = errors.New("style lookup failure")
	ErrIOFailure            = errors.New("io failure")

	// ErrUnsupportedCell is returned by cell readers for a value that has no Value variant.
	ErrUnsupportedCell = errors.New("unsupported cell type")
	// ErrSessionBusy is returned when Open or Create is called on a session that is not closed.
	ErrSessionBusy = errors.New("session already has an open document")
	// ErrInvalidSheetName covers names Excel would reject, duplicates, and deleting the last sheet.
	ErrInvalidSheetName = errors.New("invalid sheet name")
	// ErrInvalidSize is returned for column widths and row heights outside Excel's limits.
	ErrInvalidSize = errors.New("invalid size")
)

var kindNames = []struct {
	err  error
	name string
}{
	{ErrInvalidAddress, "InvalidAddress"},
	{ErrInvalidRange, "InvalidRange"},
	{ErrSheetNotFound, "SheetNotFound"},
	{ErrDocumentNotOpen, "DocumentNotOpen"},
	{ErrUnsupportedValueType, "UnsupportedValueType"},
	{ErrStyleLookup, "StyleLookupFailure"},
	{ErrIOFailure, "IOFailure"},
	{ErrSessionBusy, "SessionBusy"},
	{ErrInvalidSheetName, "InvalidSheetName"},
	{ErrInvalidSize, "InvalidSize"},
}

// KindNames returns the name of every error kind, in declaration order.
func KindNames() []string {
	names := make([]string, 0, len(kindNames)+1)
	for _, k := range kindNames {
		names = append(names, k.name)
	}
	return append(names, "Internal")
}

// KindOf returns the stable name of the error kind wrapped by err, or "Internal".
func KindOf(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// AddressError reports a row/column pair or cell reference that cannot be used
type AddressError struct {
	Row   int
	Col   int
	Ref   string
	Cause error
}

func (e *AddressError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("address error for '%s': %v", e.Ref, e.Cause)
	}
	return fmt.Sprintf("address error for row=%d, col=%d: %v", e.Row, e.Col, e.Cause)
}

func (e *AddressError) Unwrap() error {
	return e.Cause
}

// RangeError represents errors related to rectangular ranges
type RangeError struct {
	Operation string
	Range     string
	Cause     error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range error during %s on '%s': %v", e.Operation, e.Range, e.Cause)
}

func (e *RangeError) Unwrap() error {
	return e.Cause
}

// SheetError represents errors related to worksheet operations
type SheetError struct {
	Operation string
	SheetName string
	Cause     error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("worksheet error during %s on sheet '%s': %v", e.Operation, e.SheetName, e.Cause)
}

func (e *SheetError) Unwrap() error {
	return e.Cause
}

// WorkbookError represents errors related to the workbook document itself
type WorkbookError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *WorkbookError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("workbook error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("workbook error during %s on %s: %v", e.Operation, e.Path, e.Cause)
}

func (e *WorkbookError) Unwrap() error {
	return e.Cause
}

// ValueError represents a cell value that cannot be converted or written
type ValueError struct {
	Operation string
	Location  string
	Value     any
	Cause     error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value error during %s at %s (%T): %v", e.Operation, e.Location, e.Value, e.Cause)
}

func (e *ValueError) Unwrap() error {
	return e.Cause
}

// StyleError represents a failed style resolution for a single cell
type StyleError struct {
	Operation string
	Cell      string
	Cause     error
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("style error during %s on %s: %v", e.Operation, e.Cell, e.Cause)
}

func (e *StyleError) Unwrap() error {
	return e.Cause
}
