package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/realtime"
	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/store"
	"github.com/cppla/myblog/submission"
	"github.com/cppla/myblog/utils"
)

const (
	postDetailCachePrefix = "myblog:cache:post:detail:"
	postCacheTTL          = 10 * time.Minute
)

// PostController manages blog posts. Writes require the Admin role.
type PostController struct {
	db      *gorm.DB
	posts   store.Collection[models.Post]
	storage storage.Storage
	hub     *realtime.Hub
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, st storage.Storage, hub *realtime.Hub) *PostController {
	return &PostController{db: db, posts: store.NewPosts(db), storage: st, hub: hub}
}

// ListPosts returns one page of posts, newest first, with short descriptions.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, size := parsePagination(ctx, config.Get().PostsPageSize)

	// Pages are not cached: the total is counted with every request.
	result, err := listing.FetchPage[models.Post](ctx.Request.Context(), p.posts, nil, page, size)
	if err != nil {
		respondError(ctx, err)
		return
	}
	for i := range result.Records {
		result.Records[i].Summarize()
	}
	utils.Success(ctx, pageData(result))
}

// GetPost returns a single post with its author.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post id")
		return
	}
	cacheKey := postDetailCachePrefix + strconv.FormatUint(uint64(id), 10)
	var cached models.Post
	if utils.CacheGetJSON(cacheKey, &cached) {
		utils.Success(ctx, cached)
		return
	}

	post, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		respondError(ctx, err)
		return
	}
	utils.CacheSetJSON(cacheKey, post, postCacheTTL)
	utils.Success(ctx, post)
}

// CreatePost uploads the optional attachment, then inserts the post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	req, file, err := bindRecordPayload(ctx)
	if err != nil {
		badPayload(ctx, err)
		return
	}
	ident := middleware.Identity(ctx)

	var created *models.Post
	writer := submission.WriterFunc(func(c context.Context, v submission.Values) (uint, error) {
		post := models.Post{
			UserID:   ident.UserID,
			Title:    v.Title,
			Body:     v.Body,
			ImageURL: v.ImageURL,
		}
		if err := p.posts.Create(c, &post); err != nil {
			return 0, err
		}
		created = &post
		return post.ID, nil
	})

	form := submission.New(writer, newDraft(p.db, p.storage, ident.UserID), submission.WithTitle(), submission.WithValues(req.values()))
	form.OnCreated(func(ev submission.Event) {
		p.changed(realtime.EventCreated, ev.ID)
		utils.PushFlash(ident.UserID, utils.FlashInfo, msgPostCreated)
	})
	if file != nil {
		if err := form.Attach(ctx.Request.Context(), *file); err != nil {
			respondError(ctx, err)
			return
		}
	}
	if _, err := form.Submit(ctx.Request.Context()); err != nil {
		p.flashFailure(ident.UserID, err)
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, created)
}

// UpdatePost replaces title and body. The image is kept unless a new one is
// supplied or remove_image is set.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post id")
		return
	}
	req, file, err := bindRecordPayload(ctx)
	if err != nil {
		badPayload(ctx, err)
		return
	}
	ident := middleware.Identity(ctx)

	existing, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		respondError(ctx, err)
		return
	}

	initial := req.values()
	if initial.ImageURL == nil {
		initial.ImageURL = existing.ImageURL
	}

	var updated *models.Post
	writer := submission.WriterFunc(func(c context.Context, v submission.Values) (uint, error) {
		post, err := p.posts.Update(c, id, map[string]any{
			"title":     v.Title,
			"body":      v.Body,
			"image_url": v.ImageURL,
		})
		if err != nil {
			return 0, err
		}
		updated = post
		return post.ID, nil
	})

	form := submission.New(writer, newDraft(p.db, p.storage, ident.UserID), submission.WithTitle(), submission.WithValues(initial))
	form.OnCreated(func(ev submission.Event) {
		p.changed(realtime.EventUpdated, ev.ID)
		utils.PushFlash(ident.UserID, utils.FlashInfo, msgPostUpdated)
	})
	if req.RemoveImage {
		form.Detach()
	}
	if file != nil {
		form.Detach()
		if err := form.Attach(ctx.Request.Context(), *file); err != nil {
			respondError(ctx, err)
			return
		}
	}
	if _, err := form.Submit(ctx.Request.Context()); err != nil {
		p.flashFailure(ident.UserID, err)
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, updated)
}

// DeletePost removes a post and its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post id")
		return
	}
	ident := middleware.Identity(ctx)
	if err := p.posts.Delete(ctx.Request.Context(), id); err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		p.flashFailure(ident.UserID, err)
		respondError(ctx, err)
		return
	}
	p.changed(realtime.EventDeleted, id)
	utils.PushFlash(ident.UserID, utils.FlashInfo, msgPostDeleted)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// changed drops the cached post and notifies live listings.
func (p *PostController) changed(kind string, id uint) {
	utils.InvalidateByPrefix(postDetailCachePrefix + strconv.FormatUint(uint64(id), 10))
	if p.hub != nil {
		p.hub.Publish(realtime.Event{Type: kind, Collection: "posts", ID: id})
	}
}

func (p *PostController) flashFailure(userID uint, err error) {
	var dberr *store.Error
	if errors.As(err, &dberr) {
		utils.PushFlash(userID, utils.FlashError, dberr.Message)
	}
}

func badPayload(ctx *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "request body too large")
		return
	}
	utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
}
