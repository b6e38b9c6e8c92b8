package upload

import (
	"crypto/rand"
	"encoding/hex"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// extensions maps the content types an attachment may be stored as to the
// extension its key gets. Anything else is stored without one.
var extensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"image/x-icon":    ".ico",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"audio/mpeg":      ".mp3",
	"audio/wave":      ".wav",
	"application/pdf": ".pdf",
}

// NewKey returns a storage key of the form 2006/01/02/<uuid>-<token><ext>.
// The extension follows contentType; the client's filename is never used.
func NewKey(contentType string) string {
	return time.Now().UTC().Format("2006/01/02/") + uuid.NewString() + "-" + token() + ExtensionFor(contentType)
}

// ExtensionFor returns the key extension for contentType, or "" when the
// type has none on the allow list.
func ExtensionFor(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	return extensions[strings.ToLower(contentType)]
}

func token() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	return hex.EncodeToString(b)
}
