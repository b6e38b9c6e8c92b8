package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects below a directory served as static files.
type Local struct {
	root    string
	baseURL string
}

// NewLocal stores objects under root and exposes them under baseURL,
// e.g. "static/uploads" and "/static/uploads".
func NewLocal(root, baseURL string) *Local {
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload creates the file exclusively unless opts.Overwrite is set.
func (l *Local) Upload(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Name: "Canceled", Message: err.Error(), Err: err}
	}
	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &Error{Name: "StorageError", Message: "failed to create upload directory", Err: err}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if opts.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", &Error{Name: ErrDuplicate.Name, Message: ErrDuplicate.Message, Err: err}
		}
		return "", &Error{Name: "StorageError", Message: "failed to save file", Err: err}
	}

	written, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", &Error{Name: "StorageError", Message: "failed to write file", Err: err}
	}
	if size >= 0 && written != size {
		_ = os.Remove(dst)
		return "", &Error{Name: "IncompleteUpload", Message: "size mismatch"}
	}
	return key, nil
}

func (l *Local) PublicURL(path string) string {
	return l.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Remove deletes the object; a missing object is not an error.
func (l *Local) Remove(_ context.Context, path string) error {
	if err := ValidateKey(path); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(l.root, filepath.FromSlash(path)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Name: "StorageError", Message: err.Error(), Err: err}
	}
	return nil
}
