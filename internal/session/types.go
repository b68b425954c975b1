package session

import (
	"errors"
	"fmt"
	"strings"

	"gallery/internal/pipeline"
)

// Status is the session state.
type Status int

const (
	StatusIdle Status = iota
	StatusScanning
	StatusGenerating
	StatusCancelling
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusScanning:
		return "scanning"
	case StatusGenerating:
		return "generating"
	case StatusCancelling:
		return "cancelling"
	case StatusComplete:
		return "complete"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for st := StatusIdle; st <= StatusComplete; st++ {
		if strings.EqualFold(st.String(), string(text)) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", text)
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	SessionID    string          `json:"sessionId"`
	ActiveTaskID pipeline.TaskID `json:"activeTaskId"`
	Status       Status          `json:"status"`
	Folder       string          `json:"folder"`
	// LoadedCount and TotalCount describe the current task only.
	LoadedCount    int  `json:"loadedCount"`
	TotalCount     int  `json:"totalCount"`
	Failed         int  `json:"failed"`
	HasMore        bool `json:"hasMore"`
	TotalEstimate  int  `json:"totalEstimate"`
	WorkingSetSize int  `json:"workingSetSize"`
}

var (
	// ErrBusy is returned when an operation needs the session to be idle
	// or complete.
	ErrBusy = errors.New("session is busy")
	// ErrNoMore is returned by LoadMore when the folder is exhausted.
	ErrNoMore = errors.New("no more images to load")
	// ErrNoFolder is returned by LoadMore before any folder was opened.
	ErrNoFolder = errors.New("no folder open")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager closed")
)
