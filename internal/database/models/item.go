package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item is one weighted wheel slice. Position is assigned on insert and gives
// a stable per-owner display order.
type Item struct {
	bun.BaseModel `bun:"table:items"`

	ID        string `bun:",pk"`
	OwnerID   string
	Label     string
	Weight    float64
	Position  int64
	CreatedAt time.Time
}
