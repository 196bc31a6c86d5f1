// Package notifytest provides a recording notify.Notifier for tests.
package notifytest

import (
	"context"
	"sync"
)

// Recorder records every message and answers prompts with Answer.
type Recorder struct {
	Answer string

	mu       sync.Mutex
	statuses []string
	open     int
	infos    []string
	prompts  []string
}

// Status implements notify.Notifier.
func (r *Recorder) Status(msg string) func() {
	r.mu.Lock()
	r.statuses = append(r.statuses, msg)
	r.open++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.open--
			r.mu.Unlock()
		})
	}
}

// Info implements notify.Notifier.
func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

// Prompt implements notify.Notifier.
func (r *Recorder) Prompt(_ context.Context, msg string, _ ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, msg)
	return r.Answer, nil
}

// Statuses returns every status shown.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// OpenStatuses returns how many statuses were shown and not dismissed.
func (r *Recorder) OpenStatuses() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Infos returns every informational notice.
func (r *Recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

// Prompts returns every prompt message.
func (r *Recorder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}
