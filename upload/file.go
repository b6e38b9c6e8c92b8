package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// File is a local file chosen for upload. Open may be called once per
// upload attempt, so a failed upload can be retried from the same File.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileFromPath describes a file on disk. The content type is sniffed from
// the data, so a renamed file is judged by what it holds.
func FileFromPath(p string) (File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", p)
	}
	open := func() (io.ReadCloser, error) { return os.Open(p) }
	ct, err := sniff(open)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:        filepath.Base(p),
		Size:        info.Size(),
		ContentType: ct,
		Open:        open,
	}, nil
}

// FileFromMultipart describes a file received in a multipart form. The
// declared Content-Type and filename are ignored in favour of the sniffed type.
func FileFromMultipart(h *multipart.FileHeader) (File, error) {
	open := func() (io.ReadCloser, error) { return h.Open() }
	ct, err := sniff(open)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:        filepath.Base(h.Filename),
		Size:        h.Size,
		ContentType: ct,
		Open:        open,
	}, nil
}

// sniff detects the content type from the first 512 bytes.
func sniff(open func() (io.ReadCloser, error)) (string, error) {
	rc, err := open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(rc, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// FileFromBytes wraps an in-memory payload.
func FileFromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}
