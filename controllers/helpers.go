package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/store"
	"github.com/cppla/myblog/submission"
	"github.com/cppla/myblog/upload"
	"github.com/cppla/myblog/utils"
)

// Flash texts shown after mutations.
const (
	msgPostCreated    = "Successfully created blog!"
	msgPostUpdated    = "Successfully updated blog!"
	msgPostDeleted    = "Successfully deleted blog!"
	msgCommentCreated = "Successfully posted comment!"
	msgCommentDeleted = "Successfully deleted comment!"
	msgRegistered     = "Successfully registered!"
	msgLoggedIn       = "Successfully logged in!"
)

// multipartOverhead is allowed on top of the upload limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// parsePagination reads page from the :page path param or ?page and the size from ?page_size.
func parsePagination(ctx *gin.Context, defaultSize int) (int, int) {
	raw := ctx.Param("page")
	if raw == "" {
		raw = ctx.Query("page")
	}
	page := listing.ParsePage(raw)

	size := defaultSize
	if s, err := strconv.Atoi(ctx.Query("page_size")); err == nil && s > 0 && s <= config.Get().MaxPageSize {
		size = s
	}
	return page, size
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pageData[T any](p listing.Page[T]) utils.PageData {
	return utils.PageData{
		Items: p.Records,
		Pagination: utils.Pagination{
			Page:       p.CurrentPage,
			PageSize:   p.PageSize,
			Total:      p.Total,
			TotalPages: p.LastPage,
		},
	}
}

// recordPayload is the create/update body of posts and comments, sent as JSON
// or as multipart form fields next to a "file" part.
type recordPayload struct {
	Title       string  `json:"title" form:"title"`
	Body        string  `json:"body" form:"body"`
	ImageURL    *string `json:"image_url" form:"image_url"`
	RemoveImage bool    `json:"remove_image" form:"remove_image"`
}

// values returns the sanitized fields, so markup that sanitizes away counts
// as blank before any attachment is uploaded.
func (r recordPayload) values() submission.Values {
	return submission.Values{Title: utils.SanitizeText(r.Title), Body: utils.Sanitize(r.Body), ImageURL: r.ImageURL}
}

func bindRecordPayload(ctx *gin.Context) (recordPayload, *upload.File, error) {
	var req recordPayload
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return req, nil, err
		}
		req.ImageURL = normalizeImageURL(req.ImageURL)
		return req, nil, nil
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, config.Get().UploadMaxBytes()+multipartOverhead)
	if err := ctx.ShouldBind(&req); err != nil {
		return req, nil, err
	}
	req.ImageURL = normalizeImageURL(req.ImageURL)

	fh, err := ctx.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	// Browsers send an empty part when the file input is left blank
	if fh.Size == 0 && fh.Filename == "" {
		return req, nil, nil
	}
	f, err := upload.FileFromMultipart(fh)
	if err != nil {
		return req, nil, err
	}
	return req, &f, nil
}

func normalizeImageURL(u *string) *string {
	if u == nil {
		return nil
	}
	v := strings.TrimSpace(*u)
	if v == "" {
		return nil
	}
	return &v
}

// uploadPolicy is the configured attachment policy.
func uploadPolicy() upload.Policy {
	cfg := config.Get()
	return upload.Policy{MaxSize: cfg.UploadMaxBytes(), Accept: cfg.UploadAccept}
}

// newDraft returns a draft whose successful uploads are tracked for orphan cleanup.
func newDraft(db *gorm.DB, st storage.Storage, userID uint, opts ...upload.Option) *upload.Draft {
	opts = append([]upload.Option{upload.WithPolicy(uploadPolicy())}, opts...)
	return upload.NewDraft(&trackedStorage{Storage: st, db: db, userID: userID}, opts...)
}

// trackedStorage records each stored object in uploaded_files.
type trackedStorage struct {
	storage.Storage
	db     *gorm.DB
	userID uint
}

func (t *trackedStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) (string, error) {
	path, err := t.Storage.Upload(ctx, key, r, size, opts)
	if err != nil {
		return "", err
	}
	rec := models.UploadedFile{
		UserID:      t.userID,
		Path:        path,
		URL:         t.Storage.PublicURL(path),
		Size:        size,
		ContentType: opts.ContentType,
	}
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		utils.Sugar.Warnf("failed to track upload path=%s err=%v", path, err)
	}
	return path, nil
}

// respondError maps domain errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	var (
		reject *upload.RejectError
		valid  *submission.ValidationError
		serr   *storage.Error
		dberr  *store.Error
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reject):
		utils.Error(ctx, http.StatusBadRequest, 40031, reject.Reason)
	case errors.As(err, &tooBig):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "request body too large")
	case errors.As(err, &valid):
		utils.ErrorWithDetail(ctx, http.StatusBadRequest, 40021, valid.Message, gin.H{"field": valid.Field})
	case errors.Is(err, upload.ErrUploadInFlight), errors.Is(err, submission.ErrUploadInProgress), errors.Is(err, submission.ErrSubmitInFlight):
		utils.Error(ctx, http.StatusConflict, 40902, err.Error())
	case errors.As(err, &serr):
		status := http.StatusBadGateway
		switch {
		case storage.IsDuplicate(serr):
			status = http.StatusConflict
		case errors.Is(serr, storage.ErrInvalidKey):
			status = http.StatusBadRequest
		}
		utils.ErrorWithDetail(ctx, status, 50230, "upload failed: "+serr.Message, gin.H{"name": serr.Name, "message": serr.Message})
	case errors.As(err, &dberr):
		switch dberr.Code {
		case store.CodeNotFound:
			utils.Error(ctx, http.StatusNotFound, 40400, dberr.Message)
		case store.CodeInvalid:
			utils.ErrorWithDetail(ctx, http.StatusBadRequest, 40020, dberr.Message, gin.H{"code": dberr.Code})
		case store.CodeUnavailable:
			utils.ErrorWithDetail(ctx, http.StatusServiceUnavailable, 50300, "store unavailable, please retry", gin.H{"code": dberr.Code, "message": dberr.Message})
		default:
			utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50010, "store error", gin.H{"code": dberr.Code, "message": dberr.Message})
		}
	default:
		utils.Sugar.Errorf("unhandled error path=%s err=%v", ctx.FullPath(), err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}
