package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cppla/myblog/listing"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/submission"
)

// User is the account returned by register and login.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// Register creates a local account. The returned token is not kept; call Login.
func (c *Client) Register(ctx context.Context, email, displayName, password string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.doJSON(ctx, "POST", "/auth/register", map[string]string{
		"email":            email,
		"display_name":     displayName,
		"password":         password,
		"confirm_password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.doJSON(ctx, "POST", "/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, "POST", "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

type wirePage[T any] struct {
	Items      []T               `json:"items"`
	Pagination listingPagination `json:"pagination"`
}

type listingPagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func fetchPage[T any](ctx context.Context, c *Client, path string, page, pageSize int) (listing.Page[T], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var wp wirePage[T]
	if err := c.doJSON(ctx, "GET", path+"?"+q.Encode(), nil, &wp); err != nil {
		return listing.Page[T]{}, err
	}
	if wp.Items == nil {
		wp.Items = []T{}
	}
	return listing.Page[T]{
		Records:     wp.Items,
		CurrentPage: wp.Pagination.Page,
		LastPage:    wp.Pagination.TotalPages,
		PageSize:    wp.Pagination.PageSize,
		Total:       wp.Pagination.Total,
	}, nil
}

// Posts is the remote posts collection.
type Posts struct{ c *Client }

func (c *Client) Posts() *Posts { return &Posts{c: c} }

// FetchPage implements listing.Fetcher.
func (p *Posts) FetchPage(ctx context.Context, page, pageSize int) (listing.Page[models.Post], error) {
	return fetchPage[models.Post](ctx, p.c, "/posts", page, pageSize)
}

// Write implements submission.Writer by creating a post.
func (p *Posts) Write(ctx context.Context, v submission.Values) (uint, error) {
	var post models.Post
	if err := p.c.doJSON(ctx, "POST", "/posts", v, &post); err != nil {
		return 0, err
	}
	return post.ID, nil
}

func (p *Posts) Get(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := p.c.doJSON(ctx, "GET", fmt.Sprintf("/posts/%d", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (p *Posts) Delete(ctx context.Context, id uint) error {
	return p.c.doJSON(ctx, "DELETE", fmt.Sprintf("/posts/%d", id), nil, nil)
}

// Comments is the remote comment collection of one post.
type Comments struct {
	c      *Client
	postID uint
}

func (c *Client) Comments(postID uint) *Comments { return &Comments{c: c, postID: postID} }

// FetchPage implements listing.Fetcher.
func (cm *Comments) FetchPage(ctx context.Context, page, pageSize int) (listing.Page[models.Comment], error) {
	return fetchPage[models.Comment](ctx, cm.c, fmt.Sprintf("/posts/%d/comments", cm.postID), page, pageSize)
}

// Write implements submission.Writer by adding a comment. The title is ignored.
func (cm *Comments) Write(ctx context.Context, v submission.Values) (uint, error) {
	payload := map[string]any{"body": v.Body}
	if v.ImageURL != nil {
		payload["image_url"] = *v.ImageURL
	}
	var comment models.Comment
	if err := cm.c.doJSON(ctx, "POST", fmt.Sprintf("/posts/%d/comments", cm.postID), payload, &comment); err != nil {
		return 0, err
	}
	return comment.ID, nil
}

func (cm *Comments) Delete(ctx context.Context, id uint) error {
	return cm.c.doJSON(ctx, "DELETE", fmt.Sprintf("/comments/%d", id), nil, nil)
}
