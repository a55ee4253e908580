package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// Hub routes events to rooms. A room is either every connection of one
// user or every member of one channel; channel rooms are resolved from
// the membership store at emit time so the store stays authoritative.
//
// Delivery is best effort and never rolls back a store mutation: clients
// that miss an event resync through the channel list refresh on reconnect.
type Hub struct {
	registry *Registry
	channels store.ChannelStore
	log      *zerolog.Logger
}

// NewHub constructs a hub over the given registry and membership store.
func NewHub(registry *Registry, channels store.ChannelStore, logger *zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		channels: channels,
		log:      logger,
	}
}

// Registry exposes the connection registry backing the hub.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// EmitToUser delivers an event to every connection of one user.
func (h *Hub) EmitToUser(userID int64, ev *Event) {
	for _, c := range h.registry.ClientsOf(userID) {
		c.Send(ev)
	}
}

// EmitToChannel delivers an event to every connected member of a channel.
// excludeUserID skips one user's connections; pass 0 to deliver to all.
func (h *Hub) EmitToChannel(ctx context.Context, channelID, excludeUserID int64, ev *Event) {
	members, err := h.channels.MembersOf(ctx, channelID, true)
	if err != nil {
		h.log.Warn().Err(err).Int64("channel_id", channelID).Msg("resolve channel room")
		return
	}
	for _, m := range members {
		if m.ID == excludeUserID {
			continue
		}
		h.EmitToUser(m.ID, ev)
	}
}

// Broadcast delivers an event to every connected client.
func (h *Hub) Broadcast(ev *Event) {
	for _, c := range h.registry.AllClients() {
		c.Send(ev)
	}
}

// BroadcastExcept delivers an event to every connected client except one.
func (h *Hub) BroadcastExcept(exclude *Client, ev *Event) {
	for _, c := range h.registry.AllClients() {
		if c == exclude {
			continue
		}
		c.Send(ev)
	}
}

// PushChannelList recomputes a user's channel list (banned memberships
// excluded) and delivers it to their room. newChannel flags a just-invited
// channel so clients can sort it first.
func (h *Hub) PushChannelList(ctx context.Context, userID int64, newChannel string) {
	channels, err := h.channels.MembershipsOf(ctx, userID, true)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("recompute channel list")
		return
	}

	payload := proto.ChannelListPayload{
		Channels: lo.Map(channels, func(ch *store.Channel, _ int) proto.ChannelPayload {
			return proto.ChannelPayload{Name: ch.Name, IsPrivate: ch.IsPrivate}
		}),
		NewChannel: newChannel,
	}
	h.EmitToUser(userID, NewEvent(EventUserChannels, payload))
}
