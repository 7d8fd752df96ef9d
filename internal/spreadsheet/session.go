package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

// Session defaults
const (
	DefaultLockTimeout   = 5 * time.Second
	DefaultFileMode      = os.FileMode(0600)
	DefaultMaxRangeCells = 1_000_000
)

var workbookExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}

// State is a session's position in its lifecycle
type State int

const (
	StateClosed State = iota
	StateOpen
	StateSheetSelected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateSheetSelected:
		return "sheet_selected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type sessionOptions struct {
	lockTimeout   time.Duration
	fileMode      os.FileMode
	maxRangeCells int
}

// Option configures a Session
type Option func(*sessionOptions)

// WithLockTimeout bounds how long Open and Create wait for the workbook lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *sessionOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithFileMode sets the permissions of saved workbooks.
func WithFileMode(mode os.FileMode) Option {
	return func(o *sessionOptions) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}

// WithMaxRangeCells caps the number of cells a single range read may cover.
func WithMaxRangeCells(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.maxRangeCells = n
		}
	}
}

// Session owns one open workbook for the duration of one logical operation:
// open, select a sheet, operate, close. Nothing is kept open between sessions.
// A Session is not safe for concurrent use.
type Session struct {
	id     string
	logger *logrus.Logger
	opts   sessionOptions

	state  State
	path   string
	file   *excelize.File
	styles *workbookStyles
	sheet  *Sheet
	lock   *flock.Flock
	dirty  bool
}

// NewSession returns a closed session. A nil logger discards output.
func NewSession(logger *logrus.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	o := sessionOptions{
		lockTimeout:   DefaultLockTimeout,
		fileMode:      DefaultFileMode,
		maxRangeCells: DefaultMaxRangeCells,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Session{
		id:     uuid.New().String(),
		logger: logger,
		opts:   o,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Path returns the workbook path, or "" when closed.
func (s *Session) Path() string { return s.path }

// Dirty reports whether the workbook has unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) log() *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"path":       s.path,
	})
}

// Open opens an existing workbook and returns its sheet names.
func (s *Session) Open(ctx context.Context, path string) ([]string, error) {
	if s.state != StateClosed {
		return nil, &WorkbookError{Operation: "open", Path: path, Cause: ErrSessionBusy}
	}
	if err := checkWorkbookPath(path); err != nil {
		return nil, &WorkbookError{Operation: "open", Path: path, Cause: err}
	}
	if err := s.acquireLock(ctx, path); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		s.releaseLock()
		return nil, &WorkbookError{
			Operation: "open",
			Path:      path,
			Cause:     fmt.Errorf("%w: failed to open workbook: %v", ErrIOFailure, err),
		}
	}

	s.attach(path, f)
	s.log().Debug("Workbook opened")
	return f.GetSheetList(), nil
}

// Create starts a new workbook with a single "Sheet1". The file is written when
// the session closes. An existing file is only replaced when overwrite is set.
func (s *Session) Create(ctx context.Context, path string, overwrite bool) error {
	if s.state != StateClosed {
		return &WorkbookError{Operation: "create", Path: path, Cause: ErrSessionBusy}
	}
	if err := checkWorkbookPath(path); err != nil {
		return &WorkbookError{Operation: "create", Path: path, Cause: err}
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return &WorkbookError{Operation: "create", Path: path, Cause: fmt.Errorf("%w: file already exists", ErrIOFailure)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &WorkbookError{Operation: "create", Path: path, Cause: fmt.Errorf("%w: failed to create directory: %v", ErrIOFailure, err)}
	}
	if err := s.acquireLock(ctx, path); err != nil {
		return err
	}

	s.attach(path, excelize.NewFile())
	s.dirty = true
	s.log().Debug("Workbook created")
	return nil
}

func (s *Session) attach(path string, f *excelize.File) {
	s.path = path
	s.file = f
	s.styles = newWorkbookStyles(f)
	s.sheet = nil
	s.dirty = false
	s.state = StateOpen
}

func (s *Session) requireOpen(op string) error {
	if s.file == nil || s.state == StateClosed {
		return &WorkbookError{Operation: op, Cause: ErrDocumentNotOpen}
	}
	return nil
}

// SelectSheet makes the named sheet current. Names match exactly first, then
// case-insensitively, as Excel treats sheet names.
func (s *Session) SelectSheet(name string) error {
	if err := s.requireOpen("select_sheet"); err != nil {
		return err
	}

	resolved, err := s.resolveSheet(name, "select_sheet")
	if err != nil {
		return err
	}
	s.sheet = &Sheet{session: s, name: resolved}
	s.state = StateSheetSelected
	s.log().WithField("sheet", resolved).Debug("Sheet selected")
	return nil
}

// SelectSheetIndex makes the sheet at a 0-based position current.
func (s *Session) SelectSheetIndex(index int) error {
	if err := s.requireOpen("select_sheet"); err != nil {
		return err
	}

	names := s.file.GetSheetList()
	if index < 0 || index >= len(names) {
		return &SheetError{
			Operation: "select_sheet",
			SheetName: fmt.Sprintf("#%d", index),
			Cause:     fmt.Errorf("%w: workbook has %d sheets", ErrSheetNotFound, len(names)),
		}
	}
	return s.SelectSheet(names[index])
}

// Sheet returns the selected sheet.
func (s *Session) Sheet() (*Sheet, error) {
	if err := s.requireOpen("sheet"); err != nil {
		return nil, err
	}
	if s.sheet == nil {
		return nil, &WorkbookError{Operation: "sheet", Path: s.path, Cause: fmt.Errorf("%w: no sheet selected", ErrDocumentNotOpen)}
	}
	return s.sheet, nil
}

// resolveSheet finds the stored name for name, suggesting close matches when absent.
func (s *Session) resolveSheet(name, op string) (string, error) {
	names := s.file.GetSheetList()
	for _, n := range names {
		if n == name {
			return n, nil
		}
	}
	folder := cases.Fold()
	want := folder.String(name)
	for _, n := range names {
		if folder.String(n) == want {
			return n, nil
		}
	}

	return "", &SheetError{Operation: op, SheetName: name, Cause: sheetNotFound(name, names)}
}

func sheetNotFound(name string, names []string) error {
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return fmt.Errorf("%w (available: %s)", ErrSheetNotFound, strings.Join(names, ", "))
	}
	suggestions := make([]string, 0, 3)
	for i, m := range matches {
		if i == 3 {
			break
		}
		suggestions = append(suggestions, m.Str)
	}
	return fmt.Errorf("%w (did you mean: %s?)", ErrSheetNotFound, strings.Join(suggestions, ", "))
}

// markDirty records that the workbook must be saved on close.
func (s *Session) markDirty() {
	s.dirty = true
}

// Fail marks the session failed; its pending changes are discarded on Close.
func (s *Session) Fail() {
	if s.state != StateClosed {
		s.state = StateFailed
	}
}

// Close saves pending changes (unless the session failed), closes the
// workbook and releases its lock. Close is idempotent. Failures are logged and
// reported as false rather than returned.
func (s *Session) Close() bool {
	if s.state == StateClosed && s.file == nil {
		return true
	}

	ok := true
	if s.file != nil {
		if s.dirty && s.state != StateFailed {
			if err := s.saveTo(s.path); err != nil {
				s.log().WithError(err).Warn("Failed to save workbook")
				ok = false
			}
		} else if s.dirty {
			s.log().Info("Discarding changes of failed operation")
		}
		if err := s.file.Close(); err != nil {
			s.log().WithError(err).Warn("Failed to close workbook")
			ok = false
		}
	}
	if !s.releaseLock() {
		ok = false
	}

	s.log().WithField("saved", ok && s.dirty && s.state != StateFailed).Debug("Session closed")
	s.file = nil
	s.styles = nil
	s.sheet = nil
	s.dirty = false
	s.path = ""
	s.state = StateClosed
	return ok
}

// SaveAs writes the current workbook to path without changing the session's own path.
func (s *Session) SaveAs(path string) error {
	if err := s.requireOpen("save_as"); err != nil {
		return err
	}
	if err := checkWorkbookPath(path); err != nil {
		return &WorkbookError{Operation: "save_as", Path: path, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &WorkbookError{Operation: "save_as", Path: path, Cause: fmt.Errorf("%w: failed to create directory: %v", ErrIOFailure, err)}
	}
	if err := s.saveTo(path); err != nil {
		return &WorkbookError{Operation: "save_as", Path: path, Cause: err}
	}
	return nil
}

// saveTo writes the workbook to a temporary file in the target directory and
// renames it into place, so readers never see a partial workbook.
func (s *Session) saveTo(path string) error {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s%s", strings.TrimSuffix(base, ext), uuid.New().String(), ext))

	if err := s.file.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: failed to write workbook: %v", ErrIOFailure, err)
	}
	if err := os.Chmod(tmp, s.opts.fileMode); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: failed to set file permissions: %v", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: failed to replace workbook: %v", ErrIOFailure, err)
	}
	return nil
}

func checkWorkbookPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: workbook path is empty", ErrIOFailure)
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range workbookExtensions {
		if ext == e {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported workbook extension %q (expected one of %s)", ErrIOFailure, ext, strings.Join(workbookExtensions, ", "))
}

// Run performs one logical operation on the workbook at path: open, select
// sheet (when sheet is not empty), call fn, close. The workbook is closed on
// every path. If fn fails the session's changes are discarded; if fn succeeds
// but its changes cannot be saved, Run returns an ErrIOFailure.
func Run(ctx context.Context, logger *logrus.Logger, path, sheet string, fn func(*Session) error, opts ...Option) error {
	s := NewSession(logger, opts...)
	if _, err := s.Open(ctx, path); err != nil {
		return err
	}
	return finish(s, sheet, fn)
}

// RunCreate is Run for a workbook that does not exist yet.
func RunCreate(ctx context.Context, logger *logrus.Logger, path string, overwrite bool, fn func(*Session) error, opts ...Option) error {
	s := NewSession(logger, opts...)
	if err := s.Create(ctx, path, overwrite); err != nil {
		return err
	}
	return finish(s, "", fn)
}

func finish(s *Session, sheet string, fn func(*Session) error) (err error) {
	path := s.path
	defer func() {
		if r := recover(); r != nil {
			s.Fail()
			s.Close()
			panic(r)
		}
	}()

	if sheet != "" {
		err = s.SelectSheet(sheet)
	}
	if err == nil && fn != nil {
		err = fn(s)
	}
	if err != nil {
		s.Fail()
	}

	wantSave := err == nil && s.dirty
	if closed := s.Close(); !closed && wantSave {
		return &WorkbookError{Operation: "save", Path: path, Cause: fmt.Errorf("%w: changes could not be saved", ErrIOFailure)}
	}
	return err
}

// IsNotExist reports whether err was caused by a workbook that does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
