package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wheelcast/backend/internal/database/models"
	"github.com/wheelcast/backend/internal/hub"
	"github.com/wheelcast/backend/internal/router"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

var _ router.Controller = (*WSController)(nil)

var wsPool = new(sync.Pool)

// WSController upgrades connections onto the realtime channel and gates the
// join/joinAdmin/testSpin messages. Wheel displays authenticate with a
// capability token inside the join message; dashboards carry their session
// cookie through the upgrade request.
type WSController struct {
	Rooms    *hub.Hub
	Items    *store.ItemStore
	Owners   *store.OwnerStore
	Sessions *session.Manager
	Locks    *store.OwnerLocks

	upgrader *websocket.Upgrader
}

func (c *WSController) handleWS(w http.ResponseWriter, r *http.Request) {
	// Session is optional here: displays join by key only.
	claims, err := c.Sessions.Verify(r)
	authenticated := err == nil

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := hub.NewClient(uuid.New().String(), c.Rooms, conn)
	c.Rooms.Register(client)

	go client.WritePump()
	client.ReadPump(func(client *hub.Client, raw []byte) {
		c.dispatch(r.Context(), client, claims, authenticated, raw)
	})
}

func (c *WSController) dispatch(ctx context.Context, client *hub.Client, claims session.Claims, authenticated bool, raw []byte) {
	var msg hub.Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = client.SendMessage(hub.Error("malformed message"))
		return
	}

	switch msg.Type {
	case hub.TypeJoin:
		c.handleJoin(ctx, client, msg.Data)
	case hub.TypeJoinAdmin:
		c.handleJoinAdmin(ctx, client, claims, authenticated, msg.Data)
	case hub.TypeTestSpin:
		c.handleTestSpin(client, claims, authenticated, msg.Data)
	default:
		_ = client.SendMessage(hub.Error("unknown message type"))
	}
}

func (c *WSController) handleJoin(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var join hub.JoinData
	if err := json.Unmarshal(data, &join); err != nil || join.Key == "" {
		_ = client.SendMessage(hub.Error("missing key"))
		return
	}

	owner, err := c.Owners.ResolveWheelKey(ctx, join.Key)
	if err != nil {
		// Distinguishable rejection, not a silent drop; the connection
		// stays open but joins no room.
		_ = client.SendMessage(hub.Error("invalid key"))
		return
	}

	c.joinWithSnapshot(ctx, client, owner.ID)
}

func (c *WSController) handleJoinAdmin(ctx context.Context, client *hub.Client, claims session.Claims, authenticated bool, data json.RawMessage) {
	var join hub.JoinAdminData
	if err := json.Unmarshal(data, &join); err != nil || join.OwnerID == "" {
		_ = client.SendMessage(hub.Error("missing ownerId"))
		return
	}

	if !c.allowOwnerAction(claims, authenticated, join.OwnerID) {
		_ = client.SendMessage(hub.Error("not allowed"))
		return
	}

	if _, err := c.Owners.FindByID(ctx, join.OwnerID); err != nil {
		_ = client.SendMessage(hub.Error("unknown owner"))
		return
	}

	c.joinWithSnapshot(ctx, client, join.OwnerID)
}

func (c *WSController) handleTestSpin(client *hub.Client, claims session.Claims, authenticated bool, data json.RawMessage) {
	var spin hub.TestSpinData
	if err := json.Unmarshal(data, &spin); err != nil || spin.Winner == "" || spin.OwnerID == "" {
		_ = client.SendMessage(hub.Error("missing winner or ownerId"))
		return
	}

	if !c.allowOwnerAction(claims, authenticated, spin.OwnerID) {
		_ = client.SendMessage(hub.Error("not allowed"))
		return
	}

	c.Rooms.BroadcastSpin(spin.OwnerID, spin.Winner, spin.IsTest)
}

// allowOwnerAction admits the owner themselves and any admin.
func (c *WSController) allowOwnerAction(claims session.Claims, authenticated bool, ownerID string) bool {
	if !authenticated {
		return false
	}
	return claims.OwnerID == ownerID || claims.Role == models.RoleAdmin
}

// joinWithSnapshot adds the client to the room and hands it the current item
// set. The owner lock spans both steps, so the snapshot can never miss a
// mutation that was broadcast while the join was in flight.
func (c *WSController) joinWithSnapshot(ctx context.Context, client *hub.Client, ownerID string) {
	unlock := c.Locks.Lock(ownerID)
	defer unlock()

	c.Rooms.Join(client, ownerID)

	items, err := c.Items.List(ctx, ownerID)
	if err != nil {
		zap.L().Error("failed to load snapshot", zap.String("owner", ownerID), zap.Error(err))
		_ = client.SendMessage(hub.Error("failed to load items"))
		return
	}

	_ = client.SendMessage(hub.Snapshot(items))
}

func (c *WSController) Register(router *mux.Router) {
	c.upgrader = &websocket.Upgrader{
		HandshakeTimeout:  10 * time.Second,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		WriteBufferPool:   wsPool,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: need allowed domains from the configuration
			return true
		},
	}

	router.HandleFunc("/ws", c.handleWS).Methods(http.MethodGet)
}
