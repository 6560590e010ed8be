package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Owner is a tenant account. Password always holds a bcrypt hash, never
// plaintext. WheelKey is the owner's current capability token; nil means no
// key has been issued yet.
type Owner struct {
	bun.BaseModel `bun:"table:owners"`

	ID        string `bun:",pk"`
	Username  string
	Password  string
	WheelKey  *string
	Role      string
	CreatedAt time.Time
}
