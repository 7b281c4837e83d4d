package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Repo is generic CRUD over one catalog record type.
type Repo[T any] struct{ db *gorm.DB }

func NewRepo[T any](db *gorm.DB) *Repo[T] { return &Repo[T]{db: db} }

func (r *Repo[T]) Create(ctx context.Context, rec *T) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repo[T]) Get(ctx context.Context, id uint) (*T, error) {
	var rec T
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repo[T]) Update(ctx context.Context, rec *T) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *Repo[T]) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", workflow.ErrNotFound, id)
	}
	return nil
}

// ListOpts filters and paginates catalog listings.
type ListOpts struct {
	Query string // substring match on name
	Owner string
	Page  int
	Size  int
}

func (r *Repo[T]) List(ctx context.Context, opts ListOpts) ([]*T, int64, error) {
	if opts.Size <= 0 || opts.Size > 200 {
		opts.Size = 20
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	db := r.db.WithContext(ctx).Model(new(T))
	if opts.Query != "" {
		db = db.Where("name LIKE ?", "%"+opts.Query+"%")
	}
	if opts.Owner != "" {
		db = db.Where("owner = ?", opts.Owner)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var arr []*T
	if err := db.Order("updated_at DESC").Limit(opts.Size).Offset((opts.Page - 1) * opts.Size).Find(&arr).Error; err != nil {
		return nil, 0, err
	}
	return arr, total, nil
}

// Store bundles the portal's catalog repositories.
type Store struct {
	Dashboards *Repo[Dashboard]
	Reports    *Repo[Report]
	Models     *Repo[MLModel]
	APIs       *Repo[APIRecord]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Dashboards: NewRepo[Dashboard](db),
		Reports:    NewRepo[Report](db),
		Models:     NewRepo[MLModel](db),
		APIs:       NewRepo[APIRecord](db),
	}
}
