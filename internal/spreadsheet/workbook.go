package spreadsheet

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// MaxSheetNameLength is the longest sheet name Excel accepts.
const MaxSheetNameLength = 31

const invalidSheetNameChars = `:\/?*[]`

// SheetNames lists the workbook's sheets in order.
func (s *Session) SheetNames() ([]string, error) {
	if err := s.requireOpen("list_sheets"); err != nil {
		return nil, err
	}
	return s.file.GetSheetList(), nil
}

// SheetCount returns the number of sheets in the workbook.
func (s *Session) SheetCount() (int, error) {
	names, err := s.SheetNames()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// CurrentSheet returns the selected sheet's name, or "" when none is selected.
func (s *Session) CurrentSheet() string {
	if s.sheet == nil {
		return ""
	}
	return s.sheet.name
}

// ValidateSheetName checks a name against Excel's rules.
func ValidateSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &SheetError{Operation: "validate", SheetName: name, Cause: fmt.Errorf("%w: name cannot be empty", ErrInvalidSheetName)}
	case utf8.RuneCountInString(name) > MaxSheetNameLength:
		return &SheetError{Operation: "validate", SheetName: name, Cause: fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidSheetName, MaxSheetNameLength)}
	case strings.ContainsAny(name, invalidSheetNameChars):
		return &SheetError{Operation: "validate", SheetName: name, Cause: fmt.Errorf("%w: name cannot contain any of %s", ErrInvalidSheetName, invalidSheetNameChars)}
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return &SheetError{Operation: "validate", SheetName: name, Cause: fmt.Errorf("%w: name cannot start or end with an apostrophe", ErrInvalidSheetName)}
	}
	return nil
}

// hasSheetFolded reports whether a sheet other than except matches name case-insensitively.
func (s *Session) hasSheetFolded(name, except string) bool {
	folder := cases.Fold()
	want := folder.String(name)
	for _, n := range s.file.GetSheetList() {
		if n != except && folder.String(n) == want {
			return true
		}
	}
	return false
}

// AddSheet appends a new empty sheet and returns its 0-based position.
func (s *Session) AddSheet(name string) (int, error) {
	if err := s.requireOpen("add_sheet"); err != nil {
		return 0, err
	}
	if err := ValidateSheetName(name); err != nil {
		return 0, err
	}
	if s.hasSheetFolded(name, "") {
		return 0, &SheetError{Operation: "add_sheet", SheetName: name, Cause: fmt.Errorf("%w: a sheet with this name already exists", ErrInvalidSheetName)}
	}

	if _, err := s.file.NewSheet(name); err != nil {
		return 0, &SheetError{Operation: "add_sheet", SheetName: name, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	s.markDirty()
	s.log().WithField("sheet", name).Debug("Sheet added")
	return len(s.file.GetSheetList()) - 1, nil
}

// DeleteSheet removes a sheet. The last remaining sheet cannot be deleted.
// Deleting the selected sheet leaves no sheet selected.
func (s *Session) DeleteSheet(name string) error {
	if err := s.requireOpen("delete_sheet"); err != nil {
		return err
	}
	resolved, err := s.resolveSheet(name, "delete_sheet")
	if err != nil {
		return err
	}
	if len(s.file.GetSheetList()) <= 1 {
		return &SheetError{Operation: "delete_sheet", SheetName: resolved, Cause: fmt.Errorf("%w: cannot delete the only sheet", ErrInvalidSheetName)}
	}

	if err := s.file.DeleteSheet(resolved); err != nil {
		return &SheetError{Operation: "delete_sheet", SheetName: resolved, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	if s.sheet != nil && s.sheet.name == resolved {
		s.sheet = nil
		if s.state == StateSheetSelected {
			s.state = StateOpen
		}
	}
	s.markDirty()
	s.log().WithField("sheet", resolved).Debug("Sheet deleted")
	return nil
}

// RenameSheet renames a sheet. A change of case only is allowed.
func (s *Session) RenameSheet(oldName, newName string) error {
	if err := s.requireOpen("rename_sheet"); err != nil {
		return err
	}
	resolved, err := s.resolveSheet(oldName, "rename_sheet")
	if err != nil {
		return err
	}
	if err := ValidateSheetName(newName); err != nil {
		return err
	}
	if resolved == newName {
		return nil
	}
	if s.hasSheetFolded(newName, resolved) {
		return &SheetError{Operation: "rename_sheet", SheetName: newName, Cause: fmt.Errorf("%w: a sheet with this name already exists", ErrInvalidSheetName)}
	}

	if err := s.file.SetSheetName(resolved, newName); err != nil {
		return &SheetError{Operation: "rename_sheet", SheetName: resolved, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	if s.sheet != nil && s.sheet.name == resolved {
		s.sheet.name = newName
	}
	s.markDirty()
	s.log().WithFields(logrus.Fields{"sheet": resolved, "new_name": newName}).Debug("Sheet renamed")
	return nil
}
