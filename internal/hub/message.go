package hub

import (
	"encoding/json"

	"github.com/wheelcast/backend/internal/database/models"
)

// Server -> client message types.
const (
	TypeFullSnapshot = "full-snapshot"
	TypeItemCreated  = "item-created"
	TypeItemUpdated  = "item-updated"
	TypeItemDeleted  = "item-deleted"
	TypeSpin         = "spin"
	TypeError        = "error"
)

// Client -> server message types.
const (
	TypeJoin      = "join"
	TypeJoinAdmin = "joinAdmin"
	TypeTestSpin  = "testSpin"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound is an Envelope whose payload has not been decoded yet.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Item is the client-visible projection of a stored item. The owner id stays
// server-side; a room only ever carries its own owner's items.
type Item struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

func ItemFromModel(m models.Item) Item {
	return Item{
		ID:     m.ID,
		Label:  m.Label,
		Weight: m.Weight,
	}
}

func ItemsFromModels(ms []models.Item) []Item {
	items := make([]Item, 0, len(ms))
	for _, m := range ms {
		items = append(items, ItemFromModel(m))
	}
	return items
}

type SnapshotData struct {
	Items []Item `json:"items"`
}

type ItemDeletedData struct {
	ID string `json:"id"`
}

type SpinData struct {
	Winner string `json:"winner"`
	IsTest bool   `json:"isTest"`
}

type ErrorData struct {
	Message string `json:"message"`
}

func Snapshot(items []models.Item) Envelope {
	return Envelope{Type: TypeFullSnapshot, Data: SnapshotData{Items: ItemsFromModels(items)}}
}

func ItemCreated(item models.Item) Envelope {
	return Envelope{Type: TypeItemCreated, Data: ItemFromModel(item)}
}

func ItemUpdated(item models.Item) Envelope {
	return Envelope{Type: TypeItemUpdated, Data: ItemFromModel(item)}
}

func ItemDeleted(id string) Envelope {
	return Envelope{Type: TypeItemDeleted, Data: ItemDeletedData{ID: id}}
}

func Spin(winner string, isTest bool) Envelope {
	return Envelope{Type: TypeSpin, Data: SpinData{Winner: winner, IsTest: isTest}}
}

func Error(message string) Envelope {
	return Envelope{Type: TypeError, Data: ErrorData{Message: message}}
}

// JoinData is sent by a wheel display; Key is the owner's capability token.
type JoinData struct {
	Key string `json:"key"`
}

// JoinAdminData is sent by an authenticated dashboard.
type JoinAdminData struct {
	OwnerID string `json:"ownerId"`
}

// TestSpinData triggers a spin announcement from the dashboard.
type TestSpinData struct {
	Winner  string `json:"winner"`
	OwnerID string `json:"ownerId"`
	IsTest  bool   `json:"isTest"`
}
