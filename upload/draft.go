// Package upload tracks a single pending attachment from selection to a
// public URL. A Draft only changes state through its methods.
package upload

import (
	"context"
	"errors"
	"sync"

	"github.com/cppla/myblog/storage"
)

// State of a Draft.
type State int

const (
	Idle State = iota
	Selected
	Uploading
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Uploading:
		return "uploading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Trigger decides when a selected file is uploaded.
type Trigger int

const (
	// OnSubmit uploads when the owning form is submitted.
	OnSubmit Trigger = iota
	// OnSelect uploads as soon as the file is selected.
	OnSelect
)

var (
	ErrAlreadySelected = errors.New("a file is already attached; remove it first")
	ErrNoFile          = errors.New("no file selected")
	ErrUploadInFlight  = errors.New("upload already in progress")
	// ErrDiscarded is returned by Upload when the draft was cleared while
	// the upload was running. The uploaded object, if any, is abandoned.
	ErrDiscarded = errors.New("upload discarded")
)

// Snapshot is a point-in-time copy of a Draft.
type Snapshot struct {
	State State
	File  *File
	Path  string
	URL   string
	Err   error
}

// KeyFunc names the storage object for a file.
type KeyFunc func(File) string

// Option configures a Draft.
type Option func(*Draft)

func WithPolicy(p Policy) Option { return func(d *Draft) { d.policy = p } }

func WithKeyFunc(fn KeyFunc) Option { return func(d *Draft) { d.keygen = fn } }

func WithCacheControl(v string) Option { return func(d *Draft) { d.cacheControl = v } }

// Draft holds at most one file and its upload outcome.
type Draft struct {
	store        storage.Storage
	policy       Policy
	keygen       KeyFunc
	cacheControl string

	mu    sync.Mutex
	gen   uint64
	state State
	file  *File
	path  string
	url   string
	err   error
}

// NewDraft returns an Idle draft that uploads into store.
func NewDraft(store storage.Storage, opts ...Option) *Draft {
	d := &Draft{
		store:        store,
		keygen:       func(f File) string { return NewKey(f.ContentType) },
		cacheControl: "max-age=3600",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Select attaches f. A file refused by the policy leaves the draft Idle
// and returns a *RejectError; storage is not contacted.
func (d *Draft) Select(f File) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle {
		return ErrAlreadySelected
	}
	if err := d.policy.Check(f); err != nil {
		return err
	}
	d.file = &f
	d.state = Selected
	d.err = nil
	return nil
}

// Upload sends the selected file to storage and returns its public URL.
// It retries from Failed with a fresh key and is a no-op once Succeeded.
func (d *Draft) Upload(ctx context.Context) (string, error) {
	d.mu.Lock()
	switch d.state {
	case Idle:
		d.mu.Unlock()
		return "", ErrNoFile
	case Uploading:
		d.mu.Unlock()
		return "", ErrUploadInFlight
	case Succeeded:
		url := d.url
		d.mu.Unlock()
		return url, nil
	}
	d.state = Uploading
	d.err = nil
	d.gen++
	gen := d.gen
	f := *d.file
	d.mu.Unlock()

	path, err := d.put(ctx, f)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return "", ErrDiscarded
	}
	if err != nil {
		d.state = Failed
		d.err = err
		return "", err
	}
	d.state = Succeeded
	d.path = path
	d.url = d.store.PublicURL(path)
	return d.url, nil
}

func (d *Draft) put(ctx context.Context, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", &storage.Error{Name: "ReadError", Message: err.Error(), Err: err}
	}
	defer rc.Close()
	return d.store.Upload(ctx, d.keygen(f), rc, f.Size, storage.PutOptions{
		ContentType:  f.ContentType,
		CacheControl: d.cacheControl,
	})
}

// Remove clears the draft back to Idle. A running upload keeps going but
// its result is dropped.
func (d *Draft) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.state = Idle
	d.file = nil
	d.path = ""
	d.url = ""
	d.err = nil
}

func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// URL is set only in Succeeded.
func (d *Draft) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{State: d.state, Path: d.path, URL: d.url, Err: d.err}
	if d.file != nil {
		f := *d.file
		s.File = &f
	}
	return s
}
