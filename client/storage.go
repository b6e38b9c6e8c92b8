package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"sync"

	"github.com/cppla/myblog/storage"
)

// Storage uploads through POST /upload. It implements storage.Storage so an
// upload.Draft can push attachments to a remote blog.
type Storage struct {
	c          *Client
	publicBase string

	mu   sync.Mutex
	urls map[string]string
}

// Storage returns the remote object store. publicBase is used by PublicURL
// for paths this client did not upload itself; empty means <base>/static/uploads.
func (c *Client) Storage(publicBase string) *Storage {
	if publicBase == "" {
		publicBase = c.baseURL + "/static/uploads"
	}
	return &Storage{c: c, publicBase: strings.TrimRight(publicBase, "/"), urls: map[string]string{}}
}

var _ storage.Storage = (*Storage)(nil)

// Upload streams r as the "file" part. The server never overwrites, so
// opts.Overwrite is ignored and a taken key fails with a Duplicate error.
func (s *Storage) Upload(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, key, r, opts.ContentType)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := s.c.newRequest(ctx, http.MethodPost, "/upload", pr, mw.FormDataContentType())
	if err != nil {
		pr.Close()
		return "", err
	}
	var out struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := s.c.send(s.c.slow, req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if se, ok := apiErr.Unwrap().(*storage.Error); ok {
				return "", se
			}
		}
		return "", &storage.Error{Name: "StorageError", Message: err.Error(), Err: err}
	}

	s.mu.Lock()
	s.urls[out.Path] = out.URL
	s.mu.Unlock()
	return out.Path, nil
}

func writeUploadForm(mw *multipart.Writer, key string, r io.Reader, contentType string) error {
	if err := mw.WriteField("key", key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(path.Base(key))))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// PublicURL returns the URL the server reported for path, or one derived from publicBase.
func (s *Storage) PublicURL(p string) string {
	s.mu.Lock()
	u, ok := s.urls[p]
	s.mu.Unlock()
	if ok {
		return u
	}
	return s.publicBase + "/" + p
}

// Remove is not offered by the API; the server reclaims unreferenced uploads itself.
func (s *Storage) Remove(_ context.Context, p string) error {
	return &storage.Error{Name: "Unsupported", Message: "remote storage does not delete " + p}
}
