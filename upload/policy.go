package upload

import (
	"fmt"
	"mime"
	"strings"
)

// Policy limits what may be selected for upload.
type Policy struct {
	// MaxSize in bytes; zero means unlimited.
	MaxSize int64
	// Accept holds MIME types ("image/png"), wildcards ("image/*") or
	// extensions (".png"). Empty accepts everything.
	Accept []string
}

// RejectError explains why a file was refused before any upload.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

// Check validates f against the policy.
func (p Policy) Check(f File) error {
	if f.Open == nil {
		return &RejectError{Reason: "no file selected"}
	}
	if p.MaxSize > 0 && f.Size > p.MaxSize {
		return &RejectError{Reason: fmt.Sprintf("%s is %s, larger than the %s limit", f.Name, humanSize(f.Size), humanSize(p.MaxSize))}
	}
	if !p.accepts(f) {
		return &RejectError{Reason: fmt.Sprintf("%s is not an accepted file type (%s)", f.Name, strings.Join(p.Accept, ", "))}
	}
	return nil
}

func (p Policy) accepts(f File) bool {
	if len(p.Accept) == 0 {
		return true
	}
	ct := f.ContentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	ct = strings.ToLower(ct)
	for _, a := range p.Accept {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			// Extensions are matched against the content type, never the filename.
			if ct != "" && matchesExt(ct, a) {
				return true
			}
		case strings.HasSuffix(a, "/*"):
			if ct != "" && strings.HasPrefix(ct, strings.TrimSuffix(a, "*")) {
				return true
			}
		case ct == a:
			return true
		}
	}
	return false
}

func matchesExt(ct, ext string) bool {
	if ExtensionFor(ct) == ext {
		return true
	}
	exts, _ := mime.ExtensionsByType(ct)
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	v := float64(n) / float64(div)
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d%cB", int64(v), "KMGTPE"[exp])
	}
	return fmt.Sprintf("%.1f%cB", v, "KMGTPE"[exp])
}
