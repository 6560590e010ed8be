package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/wheelcast/backend/internal/database/models"
	"github.com/wheelcast/backend/internal/hub"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

func newWSEnv(t *testing.T) (*WSController, *testEnv, *hub.Hub) {
	t.Helper()

	env := newTestEnv(t)
	rooms := hub.NewHub()

	wsc := &WSController{
		Rooms:    rooms,
		Items:    env.items,
		Owners:   env.owners,
		Sessions: env.sessions,
		Locks:    store.NewOwnerLocks(),
	}

	return wsc, env, rooms
}

func newWSClient(h *hub.Hub, id string) *hub.Client {
	c := hub.NewClient(id, h, nil)
	h.Register(c)
	return c
}

func drainFrames(t *testing.T, c *hub.Client) (frames []hub.Inbound) {
	t.Helper()

	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return
			}

			var frame hub.Inbound
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("undecodable frame: %v", err)
			}
			frames = append(frames, frame)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func rawMessage(t *testing.T, msgType string, data interface{}) []byte {
	t.Helper()

	raw, err := json.Marshal(hub.Envelope{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("failed to encode message: %v", err)
	}
	return raw
}

func TestJoinByKeyDeliversSnapshot(t *testing.T) {
	wsc, env, rooms := newWSEnv(t)
	ctx := context.Background()

	owner := env.createOwner(t, "alice", models.RoleUser)
	if _, err := env.items.Create(ctx, owner.ID, "Pizza", 3); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	c := newWSClient(rooms, "display")
	wsc.dispatch(ctx, c, session.Claims{}, false, rawMessage(t, hub.TypeJoin, hub.JoinData{Key: *owner.WheelKey}))

	frames := drainFrames(t, c)
	if len(frames) != 1 || frames[0].Type != hub.TypeFullSnapshot {
		t.Fatalf("expected one snapshot frame, got %+v", frames)
	}

	var snapshot hub.SnapshotData
	if err := json.Unmarshal(frames[0].Data, &snapshot); err != nil {
		t.Fatalf("undecodable snapshot: %v", err)
	}
	if len(snapshot.Items) != 1 || snapshot.Items[0].Label != "Pizza" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if size := rooms.RoomSize(owner.ID); size != 1 {
		t.Fatalf("expected room size 1, got %d", size)
	}
}

func TestJoinWithInvalidKeyIsRejected(t *testing.T) {
	wsc, env, rooms := newWSEnv(t)
	ctx := context.Background()

	owner := env.createOwner(t, "alice", models.RoleUser)

	c := newWSClient(rooms, "display")
	wsc.dispatch(ctx, c, session.Claims{}, false, rawMessage(t, hub.TypeJoin, hub.JoinData{Key: "deadbeef"}))

	frames := drainFrames(t, c)
	if len(frames) != 1 || frames[0].Type != hub.TypeError {
		t.Fatalf("expected a distinguishable error frame, got %+v", frames)
	}

	// The connection joined no room, so it sees no broadcasts.
	rooms.BroadcastSpin(owner.ID, "Pizza", false)
	if frames := drainFrames(t, c); len(frames) != 0 {
		t.Fatalf("rejected client received events: %+v", frames)
	}
}

func TestJoinAdminRequiresMatchingSession(t *testing.T) {
	wsc, env, rooms := newWSEnv(t)
	ctx := context.Background()

	alice := env.createOwner(t, "alice", models.RoleUser)
	bob := env.createOwner(t, "bob", models.RoleUser)
	root := env.createOwner(t, "root", models.RoleAdmin)

	tests := []struct {
		name          string
		claims        session.Claims
		authenticated bool
		target        string
		wantJoin      bool
	}{
		{"unauthenticated", session.Claims{}, false, alice.ID, false},
		{"own room", session.Claims{OwnerID: alice.ID, Role: models.RoleUser}, true, alice.ID, true},
		{"someone else's room", session.Claims{OwnerID: bob.ID, Role: models.RoleUser}, true, alice.ID, false},
		{"admin joins any room", session.Claims{OwnerID: root.ID, Role: models.RoleAdmin}, true, alice.ID, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newWSClient(rooms, fmt.Sprintf("dash-%d", i))
			before := rooms.RoomSize(tt.target)

			wsc.dispatch(ctx, c, tt.claims, tt.authenticated, rawMessage(t, hub.TypeJoinAdmin, hub.JoinAdminData{OwnerID: tt.target}))

			frames := drainFrames(t, c)
			if tt.wantJoin {
				if len(frames) != 1 || frames[0].Type != hub.TypeFullSnapshot {
					t.Fatalf("expected snapshot, got %+v", frames)
				}
				if rooms.RoomSize(tt.target) != before+1 {
					t.Fatal("client not added to room")
				}
			} else {
				if len(frames) != 1 || frames[0].Type != hub.TypeError {
					t.Fatalf("expected error frame, got %+v", frames)
				}
				if rooms.RoomSize(tt.target) != before {
					t.Fatal("rejected client was added to room")
				}
			}
		})
	}
}

func TestTestSpinBroadcastsToRoomOnly(t *testing.T) {
	wsc, env, rooms := newWSEnv(t)
	ctx := context.Background()

	alice := env.createOwner(t, "alice", models.RoleUser)
	bob := env.createOwner(t, "bob", models.RoleUser)

	display := newWSClient(rooms, "display")
	wsc.dispatch(ctx, display, session.Claims{}, false, rawMessage(t, hub.TypeJoin, hub.JoinData{Key: *alice.WheelKey}))

	other := newWSClient(rooms, "other-display")
	wsc.dispatch(ctx, other, session.Claims{}, false, rawMessage(t, hub.TypeJoin, hub.JoinData{Key: *bob.WheelKey}))

	drainFrames(t, display)
	drainFrames(t, other)

	dashboard := newWSClient(rooms, "dashboard")
	claims := session.Claims{OwnerID: alice.ID, Role: models.RoleUser}
	wsc.dispatch(ctx, dashboard, claims, true, rawMessage(t, hub.TypeTestSpin, hub.TestSpinData{
		Winner:  "Pizza",
		OwnerID: alice.ID,
		IsTest:  true,
	}))

	frames := drainFrames(t, display)
	if len(frames) != 1 || frames[0].Type != hub.TypeSpin {
		t.Fatalf("expected spin in alice's room, got %+v", frames)
	}

	var spin hub.SpinData
	if err := json.Unmarshal(frames[0].Data, &spin); err != nil {
		t.Fatalf("undecodable spin: %v", err)
	}
	if spin.Winner != "Pizza" || !spin.IsTest {
		t.Fatalf("unexpected spin payload: %+v", spin)
	}

	if frames := drainFrames(t, other); len(frames) != 0 {
		t.Fatalf("spin leaked into bob's room: %+v", frames)
	}
}

func TestTestSpinRequiresPermission(t *testing.T) {
	wsc, env, rooms := newWSEnv(t)
	ctx := context.Background()

	alice := env.createOwner(t, "alice", models.RoleUser)
	bob := env.createOwner(t, "bob", models.RoleUser)

	c := newWSClient(rooms, "dashboard")
	claims := session.Claims{OwnerID: bob.ID, Role: models.RoleUser}
	wsc.dispatch(ctx, c, claims, true, rawMessage(t, hub.TypeTestSpin, hub.TestSpinData{
		Winner:  "Pizza",
		OwnerID: alice.ID,
	}))

	frames := drainFrames(t, c)
	if len(frames) != 1 || frames[0].Type != hub.TypeError {
		t.Fatalf("expected error frame, got %+v", frames)
	}
}

func TestDispatchRejectsMalformedMessages(t *testing.T) {
	wsc, _, rooms := newWSEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("{")},
		{"unknown type", []byte(`{"type":"shout","data":{}}`)},
		{"join without key", []byte(`{"type":"join","data":{}}`)},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newWSClient(rooms, fmt.Sprintf("c-%d", i))
			wsc.dispatch(ctx, c, session.Claims{}, false, tt.raw)

			frames := drainFrames(t, c)
			if len(frames) != 1 || frames[0].Type != hub.TypeError {
				t.Fatalf("expected error frame, got %+v", frames)
			}
		})
	}
}
