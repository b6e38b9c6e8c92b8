package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/upload"
	"github.com/cppla/myblog/utils"
)

// UploadController stores standalone attachments whose URL is sent later
// as image_url of a post or comment.
type UploadController struct {
	db      *gorm.DB
	storage storage.Storage
}

func NewUploadController(db *gorm.DB, st storage.Storage) *UploadController {
	return &UploadController{db: db, storage: st}
}

// Upload accepts a multipart "file" and an optional "key". The type is
// sniffed from the content. A key that is already taken is answered with 409
// and nothing is overwritten.
func (u *UploadController) Upload(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, config.Get().UploadMaxBytes()+multipartOverhead)

	fh, err := ctx.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "request body too large")
		case errors.Is(err, http.ErrMissingFile):
			utils.Error(ctx, http.StatusBadRequest, 40030, "file is required")
		default:
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid multipart payload")
		}
		return
	}

	file, err := upload.FileFromMultipart(fh)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid multipart payload")
		return
	}

	var opts []upload.Option
	if key := strings.TrimSpace(ctx.PostForm("key")); key != "" {
		if err := checkClientKey(key, file.ContentType); err != nil {
			respondError(ctx, err)
			return
		}
		opts = append(opts, upload.WithKeyFunc(func(upload.File) string { return key }))
	}

	ident := middleware.Identity(ctx)
	draft := newDraft(u.db, u.storage, ident.UserID, opts...)
	if err := draft.Select(file); err != nil {
		respondError(ctx, err)
		return
	}
	url, err := draft.Upload(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Warnf("upload failed user=%d file=%s err=%v", ident.UserID, fh.Filename, err)
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"path": draft.Snapshot().Path, "url": url})
}

// checkClientKey accepts a caller-chosen key only when it stays inside the
// store and its extension is the one the sniffed type would get.
func checkClientKey(key, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if want := upload.ExtensionFor(contentType); path.Ext(key) != want {
		return &storage.Error{Name: storage.ErrInvalidKey.Name, Message: fmt.Sprintf("Invalid key: %s does not match content type %s", key, contentType)}
	}
	return nil
}
