package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wheelcast/backend/internal/database/models"
)

const wheelKeyBytes = 16

// OwnerStore persists tenant accounts and acts as the capability registry:
// the wheel key column is the single live token per owner.
type OwnerStore struct {
	DB *bun.DB
}

func NewOwnerStore(db *bun.DB) *OwnerStore {
	return &OwnerStore{DB: db}
}

// ResolveWheelKey maps a capability token to its owner. Lookup is
// case-sensitive; an unknown token yields ErrInvalidCapability.
func (s *OwnerStore) ResolveWheelKey(ctx context.Context, key string) (owner models.Owner, err error) {
	if key == "" {
		err = ErrInvalidCapability
		return
	}

	err = s.DB.NewSelect().
		Model(&owner).
		Where("wheel_key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrInvalidCapability
	}
	return
}

// RotateWheelKey replaces the owner's capability token with a fresh random
// value. The old token stops resolving as soon as the update commits; clients
// already joined to the owner's room are not evicted.
func (s *OwnerStore) RotateWheelKey(ctx context.Context, ownerID string) (newKey string, err error) {
	if newKey, err = generateWheelKey(); err != nil {
		return
	}

	var res sql.Result
	res, err = s.DB.NewUpdate().
		Model((*models.Owner)(nil)).
		Set("wheel_key = ?", newKey).
		Where("id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return
	}

	var affected int64
	if affected, err = res.RowsAffected(); err != nil {
		return
	} else if affected == 0 {
		err = ErrNotFound
	}
	return
}

// FindByID loads one owner.
func (s *OwnerStore) FindByID(ctx context.Context, ownerID string) (owner models.Owner, err error) {
	err = s.DB.NewSelect().
		Model(&owner).
		Where("id = ?", ownerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

func (s *OwnerStore) findByUsername(ctx context.Context, db bun.IDB, username string) (owner models.Owner, err error) {
	err = db.NewSelect().
		Model(&owner).
		Where("lower(username) = lower(?)", username).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Authenticate checks a username/password pair. Unknown usernames and wrong
// passwords both come back as ErrInvalidCredentials.
func (s *OwnerStore) Authenticate(ctx context.Context, username, password string) (owner models.Owner, err error) {
	if owner, err = s.findByUsername(ctx, s.DB, username); errors.Is(err, ErrNotFound) {
		err = ErrInvalidCredentials
		return
	} else if err != nil {
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(owner.Password), []byte(password)) != nil {
		owner = models.Owner{}
		err = ErrInvalidCredentials
	}
	return
}

// List returns every owner. Password hashes stay in the result; the HTTP
// layer strips them before serialization.
func (s *OwnerStore) List(ctx context.Context) (owners []models.Owner, err error) {
	owners = make([]models.Owner, 0)
	err = s.DB.NewSelect().
		Model(&owners).
		Order("created_at ASC").
		Scan(ctx)
	return
}

// Create provisions an owner with a hashed password and a fresh wheel key.
// A username collision (case-insensitive) yields ErrConflict.
func (s *OwnerStore) Create(ctx context.Context, username, password, role string) (owner models.Owner, err error) {
	username = strings.TrimSpace(username)
	if username == "" {
		err = validationf("username is required")
		return
	}
	if password == "" {
		err = validationf("password is required")
		return
	}
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		err = validationf("unknown role %q", role)
		return
	}

	var hashed []byte
	if hashed, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err != nil {
		return
	}

	var wheelKey string
	if wheelKey, err = generateWheelKey(); err != nil {
		return
	}

	owner = models.Owner{
		ID:        uuid.New().String(),
		Username:  username,
		Password:  string(hashed),
		WheelKey:  &wheelKey,
		Role:      role,
		CreatedAt: time.Now(),
	}

	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) (err error) {
		if _, err = s.findByUsername(ctx, tx, username); err == nil {
			err = ErrConflict
			return
		} else if !errors.Is(err, ErrNotFound) {
			return
		}

		_, err = tx.NewInsert().
			Model(&owner).
			Exec(ctx)
		return
	})
	if err != nil {
		owner = models.Owner{}
	}
	return
}

// UpdateCredentials changes an owner's username and password in one step.
func (s *OwnerStore) UpdateCredentials(ctx context.Context, ownerID, newUsername, newPassword string) (err error) {
	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" || newPassword == "" {
		err = validationf("username and password are required")
		return
	}

	var hashed []byte
	if hashed, err = bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost); err != nil {
		return
	}

	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) (err error) {
		var existing models.Owner
		if existing, err = s.findByUsername(ctx, tx, newUsername); err == nil && existing.ID != ownerID {
			err = ErrConflict
			return
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return
		}
		err = nil

		var res sql.Result
		res, err = tx.NewUpdate().
			Model((*models.Owner)(nil)).
			Set("username = ?", newUsername).
			Set("password = ?", string(hashed)).
			Where("id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return
		}

		var affected int64
		if affected, err = res.RowsAffected(); err == nil && affected == 0 {
			err = ErrNotFound
		}
		return
	})
	return
}

// Delete removes an owner and cascades to their items inside one
// transaction, so a crash cannot leave orphaned rows behind.
func (s *OwnerStore) Delete(ctx context.Context, ownerID string) (err error) {
	err = s.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) (err error) {
		if _, err = tx.NewDelete().
			Model((*models.Item)(nil)).
			Where("owner_id = ?", ownerID).
			Exec(ctx); err != nil {
			return
		}

		var res sql.Result
		res, err = tx.NewDelete().
			Model((*models.Owner)(nil)).
			Where("id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return
		}

		var affected int64
		if affected, err = res.RowsAffected(); err == nil && affected == 0 {
			err = ErrNotFound
		}
		return
	})
	return
}

// EnsureDefaultAdmin creates the bootstrap admin/admin account when the
// owners table is empty, so a fresh deployment is reachable.
func (s *OwnerStore) EnsureDefaultAdmin(ctx context.Context) (err error) {
	var count int
	count, err = s.DB.NewSelect().
		Model((*models.Owner)(nil)).
		Count(ctx)
	if err != nil || count > 0 {
		return
	}

	if _, err = s.Create(ctx, "admin", "admin", models.RoleAdmin); err != nil {
		return
	}

	zap.L().Warn("created default admin account, change its password", zap.String("username", "admin"))
	return
}

func generateWheelKey() (key string, err error) {
	buf := make([]byte, wheelKeyBytes)
	if _, err = rand.Read(buf); err != nil {
		return
	}

	key = hex.EncodeToString(buf)
	return
}
