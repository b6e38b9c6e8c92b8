package controllers

import (
	"context"
	"net/http"

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

// CommentController handles replies under a post.
type CommentController struct {
	db       *gorm.DB
	posts    store.Collection[models.Post]
	comments store.Collection[models.Comment]
	storage  storage.Storage
	hub      *realtime.Hub
}

func NewCommentController(db *gorm.DB, st storage.Storage, hub *realtime.Hub) *CommentController {
	return &CommentController{
		db:       db,
		posts:    store.NewPosts(db),
		comments: store.NewComments(db),
		storage:  st,
		hub:      hub,
	}
}

// ListComments returns one page of a post's comments, newest first.
func (c *CommentController) ListComments(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid post id")
		return
	}
	if _, err := c.posts.Get(ctx.Request.Context(), postID); err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		respondError(ctx, err)
		return
	}

	page, size := parsePagination(ctx, config.Get().CommentsPageSize)
	result, err := listing.FetchPage[models.Comment](ctx.Request.Context(), c.comments, &postID, page, size)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, pageData(result))
}

// CreateComment adds a comment to a post, uploading the optional attachment first.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
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

	if _, err := c.posts.Get(ctx.Request.Context(), postID); err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		respondError(ctx, err)
		return
	}

	var created *models.Comment
	writer := submission.WriterFunc(func(rc context.Context, v submission.Values) (uint, error) {
		comment := models.Comment{
			PostID:   postID,
			UserID:   ident.UserID,
			Body:     v.Body,
			ImageURL: v.ImageURL,
		}
		if err := c.comments.Create(rc, &comment); err != nil {
			return 0, err
		}
		created = &comment
		return comment.ID, nil
	})

	req.Title = ""
	form := submission.New(writer, newDraft(c.db, c.storage, ident.UserID), submission.WithValues(req.values()))
	form.OnCreated(func(ev submission.Event) {
		if c.hub != nil {
			c.hub.Publish(realtime.Event{Type: realtime.EventCreated, Collection: "comments", ID: ev.ID, ParentID: &postID})
		}
		utils.PushFlash(ident.UserID, utils.FlashInfo, msgCommentCreated)
	})
	if file != nil {
		if err := form.Attach(ctx.Request.Context(), *file); err != nil {
			respondError(ctx, err)
			return
		}
	}
	if _, err := form.Submit(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, created)
}

// DeleteComment removes a comment. Only its author or an Admin may do so.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid comment id")
		return
	}
	ident := middleware.Identity(ctx)

	comment, err := c.comments.Get(ctx.Request.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40402, "comment not found")
			return
		}
		respondError(ctx, err)
		return
	}
	if !ident.CanModify(comment.UserID) {
		utils.Error(ctx, http.StatusForbidden, 40302, "not allowed to delete this comment")
		return
	}
	if err := c.comments.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	if c.hub != nil {
		parent := comment.PostID
		c.hub.Publish(realtime.Event{Type: realtime.EventDeleted, Collection: "comments", ID: id, ParentID: &parent})
	}
	utils.PushFlash(ident.UserID, utils.FlashInfo, msgCommentDeleted)
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
