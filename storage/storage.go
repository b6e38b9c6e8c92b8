// Package storage writes uploaded objects to a backend and resolves their
// public URLs. Writes never replace an existing object unless asked to.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// PutOptions controls a single upload.
type PutOptions struct {
	// Overwrite allows replacing an existing object at the same key.
	Overwrite    bool
	ContentType  string
	CacheControl string
}

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Upload writes size bytes from r at key and returns the stored path.
	Upload(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (string, error)
	PublicURL(path string) string
	Remove(ctx context.Context, path string) error
}

// Error carries the provider's error name and message.
type Error struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string { return e.Name + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same name.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Name == e.Name
}

var (
	// ErrDuplicate is returned when the key is taken and overwrite is off.
	ErrDuplicate = &Error{Name: "Duplicate", Message: "The resource already exists"}
	// ErrInvalidKey is returned for keys that could escape the store root.
	ErrInvalidKey = &Error{Name: "InvalidKey", Message: "Invalid key"}
)

// IsDuplicate reports whether err is a key collision.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// MaxKeyLength bounds object keys.
const MaxKeyLength = 512

// ValidateKey rejects empty, absolute, non-canonical and traversing keys.
func ValidateKey(key string) error {
	switch {
	case key == "", len(key) > MaxKeyLength,
		strings.HasPrefix(key, "/"),
		strings.ContainsAny(key, "\\\x00"),
		path.Clean(key) != key:
		return &Error{Name: ErrInvalidKey.Name, Message: "Invalid key: " + key}
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return &Error{Name: ErrInvalidKey.Name, Message: "Invalid key: " + key}
		}
	}
	return nil
}
