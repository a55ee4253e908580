package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// Presence aggregates a user's online state from their connection count
// and announces transitions. Only the 0->1 and 1->0 connection
// transitions are broadcast; a second socket of an already-online user
// stays silent.
type Presence struct {
	store store.Store
	hub   *Hub
	log   *zerolog.Logger
}

// NewPresence constructs the presence tracker.
func NewPresence(st store.Store, hub *Hub, logger *zerolog.Logger) *Presence {
	return &Presence{store: st, hub: hub, log: logger}
}

// Connect registers a new connection. On the user's first connection
// their last known status is announced to everyone else; the connecting
// client always receives the online-user list and its channel list.
func (p *Presence) Connect(ctx context.Context, c *Client) error {
	user, err := p.store.GetUserByID(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	first := p.hub.Registry().Register(c)

	if first {
		status := user.Status
		if status == store.StatusOffline || status == "" {
			status = store.StatusActive
		}
		p.hub.BroadcastExcept(c, NewEvent(StatusEventName(string(status)), userPayload(user)))
	}

	c.Send(NewEvent(EventUserList, p.onlineUsers(ctx, c.UserID)))
	p.hub.PushChannelList(ctx, c.UserID, "")

	p.log.Info().Int64("user_id", c.UserID).Str("conn_id", c.ID).Bool("first", first).Msg("websocket connected")
	return nil
}

// Disconnect deregisters a connection and announces user:offline when it
// was the user's last one.
func (p *Presence) Disconnect(ctx context.Context, c *Client) {
	last := p.hub.Registry().Unregister(c)
	if !last {
		return
	}

	user, err := p.store.GetUserByID(ctx, c.UserID)
	if err != nil {
		p.log.Warn().Err(err).Int64("user_id", c.UserID).Msg("load user on disconnect")
		return
	}

	p.hub.BroadcastExcept(c, NewEvent(EventUserOffline, userPayload(user)))
	p.log.Info().Int64("user_id", c.UserID).Str("conn_id", c.ID).Msg("websocket disconnected")
}

// ChangeStatus persists the user's chosen status and broadcasts it to
// all clients. Presence is a cross-channel concept, so the fanout is
// global rather than scoped to mutual channels.
func (p *Presence) ChangeStatus(ctx context.Context, userID int64, status string) error {
	s := store.UserStatus(status)
	if !s.Valid() {
		return coreError(ErrCodeBadRequest, "unknown status")
	}

	if err := p.store.UpdateUserStatus(ctx, userID, s); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	p.hub.Broadcast(NewEvent(StatusEventName(status), userPayload(user)))
	return nil
}

// onlineUsers lists every other connected user.
func (p *Presence) onlineUsers(ctx context.Context, excludeUserID int64) []proto.UserPayload {
	ids := lo.Filter(p.hub.Registry().OnlineUserIDs(), func(id int64, _ int) bool {
		return id != excludeUserID
	})

	users, err := p.store.ListUsersByIDs(ctx, ids)
	if err != nil {
		p.log.Warn().Err(err).Msg("load online users")
		return nil
	}

	return lo.Map(users, func(u *store.User, _ int) proto.UserPayload {
		return userPayload(u)
	})
}

func userPayload(u *store.User) proto.UserPayload {
	status := string(u.Status)
	if status == "" {
		status = string(store.StatusOffline)
	}
	return proto.UserPayload{ID: u.ID, Nickname: u.Nickname, Status: status}
}
