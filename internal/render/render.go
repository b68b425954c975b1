package render

import "gallery/internal/pipeline"

// Progress is reported after every delivered outcome.
type Progress struct {
	Loaded int `json:"loaded"`
	Total  int `json:"total"`
	Failed int `json:"failed"`
	// WorkingSet is the number of images listed so far for the folder.
	WorkingSet int `json:"workingSet"`
	// HasMore reports whether another page can be loaded.
	HasMore bool `json:"hasMore"`
	// CancelAvailable is false once the current task is complete or cancelled.
	CancelAvailable bool `json:"cancelAvailable"`
}

// Coordinator receives session output. Implementations must be safe to
// call from any goroutine and hand the work to whichever goroutine owns
// the visual state.
type Coordinator interface {
	// OnReset clears the view for a newly opened folder.
	OnReset(folder string)
	OnItem(o pipeline.Outcome)
	OnProgress(p Progress)
	OnComplete()
	// OnFailure reports a task-level problem; results so far stay visible.
	OnFailure(err error)
}

// Renderer draws. Every method is called from the Loop goroutine only.
type Renderer interface {
	Reset(folder string)
	// Show presents a delivered outcome. Failed outcomes carry no data and
	// are shown as placeholders.
	Show(o pipeline.Outcome)
	// Evict discards thumbnails that fell out of the retention window.
	Evict(indices []int)
	Progress(p Progress)
	Complete()
	Failure(err error)
}

// Discard is a Coordinator that drops everything.
type Discard struct{}

func (Discard) OnReset(string) {}
func (Discard) OnItem(pipeline.Outcome) {}
func (Discard) OnProgress(Progress) {}
func (Discard) OnComplete() {}
func (Discard) OnFailure(error) {}
