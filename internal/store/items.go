package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/wheelcast/backend/internal/database/models"
)

// ItemStore persists weighted wheel slices. Every operation is scoped to one
// owner; an item id belonging to someone else behaves exactly like an id that
// does not exist.
type ItemStore struct {
	DB *bun.DB
}

func NewItemStore(db *bun.DB) *ItemStore {
	return &ItemStore{DB: db}
}

// List returns the owner's items in insertion order.
func (s *ItemStore) List(ctx context.Context, ownerID string) (items []models.Item, err error) {
	items = make([]models.Item, 0)
	err = s.DB.NewSelect().
		Model(&items).
		Where("owner_id = ?", ownerID).
		Order("position ASC").
		Scan(ctx)
	return
}

// Create validates and inserts a new item at the end of the owner's order.
func (s *ItemStore) Create(ctx context.Context, ownerID, label string, weight float64) (item models.Item, err error) {
	if label, err = validateItem(label, weight); err != nil {
		return
	}

	item = models.Item{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Label:     label,
		Weight:    weight,
		CreatedAt: time.Now(),
	}

	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) (err error) {
		var maxPosition sql.NullInt64
		err = tx.NewSelect().
			Model((*models.Item)(nil)).
			ColumnExpr("max(position)").
			Where("owner_id = ?", ownerID).
			Scan(ctx, &maxPosition)
		if err != nil {
			return
		}

		item.Position = maxPosition.Int64 + 1

		_, err = tx.NewInsert().
			Model(&item).
			Exec(ctx)
		return
	})
	if err != nil {
		item = models.Item{}
	}
	return
}

// Update replaces label and weight of one of the owner's items. An id under
// a different owner comes back as ErrNotFound, never as a permission error.
func (s *ItemStore) Update(ctx context.Context, ownerID, itemID, label string, weight float64) (item models.Item, err error) {
	if label, err = validateItem(label, weight); err != nil {
		return
	}

	var res sql.Result
	res, err = s.DB.NewUpdate().
		Model((*models.Item)(nil)).
		Set("label = ?", label).
		Set("weight = ?", weight).
		Where("id = ?", itemID).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return
	}

	var affected int64
	if affected, err = res.RowsAffected(); err != nil {
		return
	} else if affected == 0 {
		err = ErrNotFound
		return
	}

	err = s.DB.NewSelect().
		Model(&item).
		Where("id = ?", itemID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted between the update and the reload.
		err = ErrNotFound
	}
	return
}

// Delete removes one item and reports how many rows went away (0 or 1).
// Deleting an absent id is not an error.
func (s *ItemStore) Delete(ctx context.Context, ownerID, itemID string) (removed int64, err error) {
	var res sql.Result
	res, err = s.DB.NewDelete().
		Model((*models.Item)(nil)).
		Where("id = ?", itemID).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return
	}

	removed, err = res.RowsAffected()
	return
}

// DeleteAllForOwner drops every item the owner has. Account removal calls
// this through OwnerStore.Delete's transaction; it exists separately for
// callers that only want the cascade.
func (s *ItemStore) DeleteAllForOwner(ctx context.Context, ownerID string) (err error) {
	_, err = s.DB.NewDelete().
		Model((*models.Item)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	return
}

func validateItem(label string, weight float64) (trimmed string, err error) {
	trimmed = strings.TrimSpace(label)
	if trimmed == "" {
		err = validationf("label must not be empty")
		return
	}

	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		err = validationf("weight must be a positive finite number")
	}
	return
}
