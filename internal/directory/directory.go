package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/durolink/durolink/internal/cache"
	"github.com/durolink/durolink/internal/models"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/logger"
)

const (
	cacheKeyPrefix = "directory:"
	cacheTTL       = 24 * time.Hour
)

// Directory maps repository owners to installation ids. The database is
// the source of truth; the cache is a read-through/write-through
// accelerator with a one day TTL.
//
// Store misses are deliberately not cached: a just-installed tenant
// must become visible the moment its row lands, and negative entries
// would hide it for up to a day.
type Directory struct {
	db    *gorm.DB
	cache cache.Store
	log   *zap.Logger
	ready atomic.Bool
}

// NewDirectory constructs a Directory over the given database and cache.
func NewDirectory(db *gorm.DB, store cache.Store) (*Directory, error) {
	if db == nil {
		return nil, errors.New("directory: db is required")
	}
	if store == nil {
		return nil, errors.New("directory: cache store is required")
	}

	return &Directory{
		db:    db,
		cache: store,
		log:   logger.WithModule("directory"),
	}, nil
}

// Write upserts the owner mapping. The durable write happens first; the
// cache must never reflect a write that did not commit.
func (d *Directory) Write(ctx context.Context, owner string, installationID int64) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("directory: owner is required")
	}

	row := models.Installation{RepoOwner: owner, InstallationID: installationID}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo_owner"}},
			DoUpdates: clause.AssignmentColumns([]string{"installation_id", "updated_at"}),
		}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("directory: upsert %q: %w", owner, err)
	}

	if err := d.cache.Set(ctx, cacheKey(owner), []byte(strconv.FormatInt(installationID, 10)), cacheTTL); err != nil {
		// The durable write already succeeded; a cache failure only costs a re-read.
		d.log.Warn("cache write failed", zap.String("owner", owner), zap.Error(err))
	}

	return nil
}

// Read resolves an owner to its installation id. A cache miss falls
// through to the durable store; a store miss before the bootstrap sync
// has completed is reported as not-ready rather than missing.
func (d *Directory) Read(ctx context.Context, owner string) (int64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, errors.New("directory: owner is required")
	}

	if value, found, err := d.cache.Get(ctx, cacheKey(owner)); err == nil && found {
		id, parseErr := strconv.ParseInt(string(value), 10, 64)
		if parseErr == nil {
			return id, nil
		}
		// Unparseable entry: evict and fall through to the store.
		_ = d.cache.Delete(ctx, cacheKey(owner))
	}

	var row models.Installation
	err := d.db.WithContext(ctx).Take(&row, "repo_owner = ?", owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !d.ready.Load() {
			return 0, apperrors.ErrDirectoryNotReady
		}
		return 0, apperrors.ErrMissingTenant
	}
	if err != nil {
		return 0, fmt.Errorf("directory: read %q: %w", owner, err)
	}

	if err := d.cache.Set(ctx, cacheKey(owner), []byte(strconv.FormatInt(row.InstallationID, 10)), cacheTTL); err != nil {
		d.log.Warn("cache populate failed", zap.String("owner", owner), zap.Error(err))
	}

	return row.InstallationID, nil
}

// Delete removes the owner mapping from the store, then the cache.
func (d *Directory) Delete(ctx context.Context, owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("directory: owner is required")
	}

	if err := d.db.WithContext(ctx).Delete(&models.Installation{}, "repo_owner = ?", owner).Error; err != nil {
		return fmt.Errorf("directory: delete %q: %w", owner, err)
	}

	return d.cache.Delete(ctx, cacheKey(owner))
}

// Ready reports whether the bootstrap sync has completed at least once.
func (d *Directory) Ready() bool {
	return d.ready.Load()
}

func (d *Directory) markReady() {
	d.ready.Store(true)
}

func cacheKey(owner string) string {
	return cacheKeyPrefix + owner
}
