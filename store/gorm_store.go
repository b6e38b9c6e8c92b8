package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/myblog/models"
)

// immutableColumns can never be changed through Update.
var immutableColumns = []string{"id", "user_id", "post_id", "created_at"}

// GormCollection implements Collection on top of a gorm table.
type GormCollection[T any] struct {
	db           *gorm.DB
	parentColumn string
	children     []child
}

type child struct {
	model  any
	column string
}

// NewPosts returns the posts collection. Deleting a post deletes its comments.
func NewPosts(db *gorm.DB) *GormCollection[models.Post] {
	return &GormCollection[models.Post]{
		db:       db,
		children: []child{{model: &models.Comment{}, column: "post_id"}},
	}
}

// NewComments returns the comments collection filtered by post_id.
func NewComments(db *gorm.DB) *GormCollection[models.Comment] {
	return &GormCollection[models.Comment]{db: db, parentColumn: "post_id"}
}

func (c *GormCollection[T]) filtered(ctx context.Context, q RangeQuery) *gorm.DB {
	tx := c.db.WithContext(ctx).Model(new(T))
	if q.ParentID != nil && c.parentColumn != "" {
		tx = tx.Where(c.parentColumn+" = ?", *q.ParentID)
	}
	if q.AuthorID != nil {
		tx = tx.Where("user_id = ?", *q.AuthorID)
	}
	return tx
}

// Range counts the matching rows and loads the requested window in one call.
func (c *GormCollection[T]) Range(ctx context.Context, q RangeQuery) ([]T, int64, error) {
	if q.From < 0 || q.To < q.From {
		return nil, 0, invalid("invalid range [%d, %d]", q.From, q.To)
	}
	if q.ParentID != nil && c.parentColumn == "" {
		return nil, 0, invalid("collection has no parent")
	}

	var total int64
	if err := c.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, wrap(err)
	}

	rows := make([]T, 0, q.To-q.From+1)
	if int64(q.From) >= total {
		return rows, total, nil
	}
	err := c.filtered(ctx, q).
		Preload("User").
		Order("created_at DESC").
		Order("id DESC").
		Offset(q.From).
		Limit(q.To - q.From + 1).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrap(err)
	}
	return rows, total, nil
}

// Get loads one row with its author.
func (c *GormCollection[T]) Get(ctx context.Context, id uint) (*T, error) {
	rec := new(T)
	if err := c.db.WithContext(ctx).Preload("User").First(rec, id).Error; err != nil {
		return nil, wrap(err)
	}
	return rec, nil
}

// Create inserts rec and reloads it so the author is populated.
func (c *GormCollection[T]) Create(ctx context.Context, rec *T) error {
	if err := c.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return wrap(err)
	}
	return wrap(c.db.WithContext(ctx).Preload("User").First(rec).Error)
}

// Update writes changes to the row addressed by id.
func (c *GormCollection[T]) Update(ctx context.Context, id uint, changes map[string]any) (*T, error) {
	for _, col := range immutableColumns {
		if _, ok := changes[col]; ok {
			return nil, invalid("column %s is immutable", col)
		}
	}
	if len(changes) == 0 {
		return c.Get(ctx, id)
	}
	res := c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		// Updates reports 0 both for missing rows and for no-op writes on some drivers.
		if _, err := c.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return c.Get(ctx, id)
}

// Delete removes the row and its dependent rows in one transaction.
func (c *GormCollection[T]) Delete(ctx context.Context, id uint) error {
	return wrap(c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range c.children {
			if err := tx.Where(ch.column+" = ?", id).Delete(ch.model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(new(T), id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}
