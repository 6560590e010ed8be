package eventsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const messageTypeNotification = "notification"

// Spinner receives spin triggers. The hub implements it; the client is handed
// one at construction so there is no late-bound registration step.
type Spinner interface {
	BroadcastSpin(ownerID, winner string, isTest bool)
}

// Client consumes reward-redemption notifications from an upstream EventSub
// websocket and turns matching ones into spin triggers for one owner's room.
// It reconnects forever with a fixed delay and never replays missed events.
type Client struct {
	URL      string
	RewardID string
	OwnerID  string
	Spinner  Spinner

	// ReconnectDelay defaults to 5s when zero.
	ReconnectDelay time.Duration
}

type notificationFrame struct {
	Metadata struct {
		MessageType string `json:"message_type"`
	} `json:"metadata"`
	Payload struct {
		Event struct {
			UserName string `json:"user_name"`
			Reward   struct {
				ID string `json:"id"`
			} `json:"reward"`
		} `json:"event"`
	} `json:"payload"`
}

// Run blocks until ctx is done.
func (c *Client) Run(ctx context.Context) {
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for {
		if err := c.consume(ctx); err != nil {
			zap.L().Warn("eventsub connection lost", zap.Error(err), zap.Duration("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) consume(ctx context.Context) (err error) {
	var conn *websocket.Conn
	if conn, _, err = websocket.DefaultDialer.DialContext(ctx, c.URL, nil); err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	zap.L().Info("connected to eventsub", zap.String("url", c.URL))

	// Unblock ReadMessage when the process shuts down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var raw []byte
		if _, raw, err = conn.ReadMessage(); err != nil {
			return
		}

		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var frame notificationFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		zap.L().Debug("discarding unparseable eventsub frame", zap.Error(err))
		return
	}

	if frame.Metadata.MessageType != messageTypeNotification {
		return
	}
	if frame.Payload.Event.Reward.ID != c.RewardID {
		return
	}

	winner := frame.Payload.Event.UserName
	if winner == "" {
		return
	}

	zap.L().Info("reward redeemed", zap.String("winner", winner), zap.String("owner", c.OwnerID))
	c.Spinner.BroadcastSpin(c.OwnerID, winner, false)
}
