package util

import (
	"io"
)

// CleanupTasks collects the teardown steps of a partially constructed object, so that a
// constructor can undo its work when a later step fails. Call Clear once construction succeeded.
type CleanupTasks []func()

// AddCloser schedules c.Close; its error is ignored.
func (t *CleanupTasks) AddCloser(c io.Closer) {
	*t = append(*t, func() { _ = c.Close() })
}

func (t *CleanupTasks) AddFunc(f func()) {
	*t = append(*t, f)
}

func (t *CleanupTasks) Clear() {
	*t = nil
}

// Run executes the tasks in reverse order of registration.
func (t *CleanupTasks) Run() {
	for i := len(*t) - 1; i >= 0; i-- {
		(*t)[i]()
	}
	*t = nil
}
