package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/storage"
)

// UploadCleaner removes uploads that no post or comment references once
// they are older than the TTL. Referenced uploads only lose their tracking row.
type UploadCleaner struct {
	db       *gorm.DB
	store    storage.Storage
	ttl      time.Duration
	interval time.Duration
	batch    int
}

// NewUploadCleaner creates a cleaner; zero interval defaults to five minutes.
func NewUploadCleaner(db *gorm.DB, store storage.Storage, ttl, interval time.Duration) *UploadCleaner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &UploadCleaner{db: db, store: store, ttl: ttl, interval: interval, batch: 100}
}

// Start sweeps periodically until ctx is cancelled. It is best-effort and logs failures.
func (c *UploadCleaner) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				n, err := c.Sweep(ctx)
				if err != nil {
					Logger.Warn("upload cleaner sweep failed", zap.Error(err), durationField(time.Since(start)))
				} else if n > 0 {
					Logger.Info("upload cleaner removed orphans", zap.Int("removed", n), durationField(time.Since(start)))
				}
			}
		}
	}()
}

// Sweep handles one batch of expired tracking rows and returns how many
// objects were removed from storage.
func (c *UploadCleaner) Sweep(ctx context.Context) (int, error) {
	var items []models.UploadedFile
	cutoff := time.Now().Add(-c.ttl)
	if err := c.db.WithContext(ctx).Where("created_at <= ?", cutoff).Order("id").Limit(c.batch).Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		used, err := c.referenced(ctx, it.URL)
		if err != nil {
			return removed, err
		}
		if !used {
			if err := c.store.Remove(ctx, it.Path); err != nil {
				Sugar.Warnf("upload cleaner remove failed path=%s err=%v", it.Path, err)
				continue
			}
			removed++
		}
		// Remove row regardless: either the object is gone or a record owns it now
		if err := c.db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			Sugar.Warnf("upload cleaner delete row failed id=%d err=%v", it.ID, err)
		}
	}
	return removed, nil
}

func (c *UploadCleaner) referenced(ctx context.Context, url string) (bool, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&models.Post{}).Where("image_url = ?", url).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := c.db.WithContext(ctx).Model(&models.Comment{}).Where("image_url = ?", url).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
