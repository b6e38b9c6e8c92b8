// Package submission drives a text form with one optional attachment.
// The record write is issued only after the attachment has an URL.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cppla/myblog/upload"
)

// Values are the fields written to the store.
type Values struct {
	Title    string  `json:"title,omitempty"`
	Body     string  `json:"body"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Writer persists one record and returns its id.
type Writer interface {
	Write(ctx context.Context, v Values) (uint, error)
}

type WriterFunc func(ctx context.Context, v Values) (uint, error)

func (f WriterFunc) Write(ctx context.Context, v Values) (uint, error) { return f(ctx, v) }

// Event is emitted after a successful write.
type Event struct {
	ID     uint
	Values Values
}

var (
	ErrSubmitInFlight   = errors.New("a submission is already in progress")
	ErrUploadInProgress = errors.New("wait for the attachment to finish uploading")
	ErrUploadFailed     = errors.New("the attachment failed to upload; retry or remove it")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// Option configures a Form.
type Option func(*Form)

// WithTitle makes the form carry a required title.
func WithTitle() Option { return func(f *Form) { f.requireTitle = true } }

func WithTrigger(t upload.Trigger) Option { return func(f *Form) { f.trigger = t } }

// WithValues pre-fills the form for editing an existing record. The
// existing image is kept unless a new file is attached or Detach is called.
func WithValues(v Values) Option {
	return func(f *Form) {
		f.title, f.body = v.Title, v.Body
		if v.ImageURL != nil {
			u := *v.ImageURL
			f.existingImage = &u
		}
	}
}

// Form owns its Draft for its whole lifetime.
type Form struct {
	writer       Writer
	draft        *upload.Draft
	trigger      upload.Trigger
	requireTitle bool

	mu            sync.Mutex
	title, body   string
	existingImage *string
	submitting    bool
	err           error
	listeners     []func(Event)
}

func New(w Writer, draft *upload.Draft, opts ...Option) *Form {
	f := &Form{writer: w, draft: draft}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Form) SetTitle(s string) {
	f.mu.Lock()
	f.title = s
	f.mu.Unlock()
}

func (f *Form) SetBody(s string) {
	f.mu.Lock()
	f.body = s
	f.mu.Unlock()
}

// Values returns the current inputs.
func (f *Form) Values() Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Values{Title: f.title, Body: f.body, ImageURL: f.imageLocked()}
}

func (f *Form) Draft() *upload.Draft { return f.draft }

// Err is the last write error, cleared by the next successful submit.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// OnCreated registers fn to run after each successful write.
func (f *Form) OnCreated(fn func(Event)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Attach selects file on the draft and, with OnSelect, uploads it now.
func (f *Form) Attach(ctx context.Context, file upload.File) error {
	if err := f.draft.Select(file); err != nil {
		return err
	}
	if f.trigger == upload.OnSelect {
		_, err := f.draft.Upload(ctx)
		return err
	}
	return nil
}

// Retry re-runs a failed upload.
func (f *Form) Retry(ctx context.Context) error {
	_, err := f.draft.Upload(ctx)
	return err
}

// Detach drops the attachment, including an image kept from WithValues.
func (f *Form) Detach() {
	f.draft.Remove()
	f.mu.Lock()
	f.existingImage = nil
	f.mu.Unlock()
}

// CanSubmit reports whether the submit control should be enabled.
func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting || f.validateLocked() != nil {
		return false
	}
	return f.gateLocked(f.draft.State()) == nil
}

func (f *Form) gateLocked(s upload.State) error {
	switch s {
	case upload.Uploading:
		return ErrUploadInProgress
	case upload.Failed:
		return ErrUploadFailed
	case upload.Selected:
		if f.trigger != upload.OnSubmit {
			return ErrUploadInProgress
		}
	}
	return nil
}

func (f *Form) validateLocked() error {
	if f.requireTitle && strings.TrimSpace(f.title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(f.body) == "" {
		return &ValidationError{Field: "body", Message: "body is required"}
	}
	return nil
}

func (f *Form) imageLocked() *string {
	if u := f.draft.URL(); u != "" {
		return &u
	}
	if f.existingImage != nil {
		u := *f.existingImage
		return &u
	}
	return nil
}

// Submit uploads a pending attachment if the trigger is OnSubmit, then
// writes the record. On failure the inputs and the draft are left as they
// were so the caller can retry.
func (f *Form) Submit(ctx context.Context) (uint, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return 0, ErrSubmitInFlight
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return 0, err
	}
	state := f.draft.State()
	if err := f.gateLocked(state); err != nil {
		if errors.Is(err, ErrUploadFailed) {
			if snap := f.draft.Snapshot(); snap.Err != nil {
				err = fmt.Errorf("%w: %v", ErrUploadFailed, snap.Err)
			}
		}
		f.mu.Unlock()
		return 0, err
	}
	f.submitting = true
	f.mu.Unlock()

	if state == upload.Selected {
		if _, err := f.draft.Upload(ctx); err != nil {
			f.finish(err)
			return 0, err
		}
	}

	f.mu.Lock()
	v := Values{Title: strings.TrimSpace(f.title), Body: f.body, ImageURL: f.imageLocked()}
	f.mu.Unlock()

	id, err := f.writer.Write(ctx, v)
	if err != nil {
		f.finish(err)
		return 0, err
	}

	f.mu.Lock()
	f.submitting = false
	f.err = nil
	f.title, f.body = "", ""
	f.existingImage = nil
	listeners := append([]func(Event){}, f.listeners...)
	f.mu.Unlock()
	f.draft.Remove()

	ev := Event{ID: id, Values: v}
	for _, fn := range listeners {
		fn(ev)
	}
	return id, nil
}

func (f *Form) finish(err error) {
	f.mu.Lock()
	f.submitting = false
	f.err = err
	f.mu.Unlock()
}
