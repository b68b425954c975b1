package scanner

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound reports a folder that is missing, not a directory or unreadable.
	ErrNotFound = errors.New("folder not found")
	// ErrPermission reports a folder the process may not list.
	ErrPermission = errors.New("permission denied")
)

// ScanError describes a failed scan. Err is ErrNotFound or ErrPermission;
// Cause is the underlying filesystem error, if any.
type ScanError struct {
	Folder string
	Err    error
	Cause  error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scan %s: %v: %v", e.Folder, e.Err, e.Cause)
	}
	return fmt.Sprintf("scan %s: %v", e.Folder, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is.
func (e *ScanError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// classify maps a filesystem error onto the scan error taxonomy.
func classify(folder string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &ScanError{Folder: folder, Err: ErrPermission, Cause: err}
	}
	// missing, ENOTDIR and any other read failure all mean "cannot list"
	return &ScanError{Folder: folder, Err: ErrNotFound, Cause: err}
}
