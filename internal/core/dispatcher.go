package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// Dispatcher parses slash commands from chat input and routes them to
// the channel, kick and message services. Every outcome — success, info
// or error — is delivered to the calling connection only; fanout to
// other rooms happens inside the services after their store mutation.
type Dispatcher struct {
	store    store.Store
	channels *Channels
	kicks    *KickCoordinator
	messages *Messages
	hub      *Hub
	log      *zerolog.Logger
}

// NewDispatcher constructs the command dispatcher.
func NewDispatcher(st store.Store, channels *Channels, kicks *KickCoordinator, messages *Messages, hub *Hub, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		channels: channels,
		kicks:    kicks,
		messages: messages,
		hub:      hub,
		log:      logger,
	}
}

// Execute runs a slash command for a connection. scope is the channel
// the command was typed in, or empty for the general namespace.
func (d *Dispatcher) Execute(ctx context.Context, c *Client, scope, command, name, flag string) {
	command = sanitize(command)
	name = sanitize(name)
	flag = sanitize(flag)
	scope = sanitize(scope)

	user, err := d.store.GetUserByID(ctx, c.UserID)
	if err != nil {
		d.log.Warn().Err(err).Int64("user_id", c.UserID).Msg("resolve command user")
		c.Send(NewEvent(EventError, "You must be logged in."))
		return
	}

	d.log.Info().Str("command", command).Str("scope", scope).Int64("user_id", user.ID).Msg("command executed")

	reply, err := d.route(ctx, user, scope, command, name, flag)
	d.Deliver(c, reply, err)
}

// Deliver sends a handler result to the calling connection: the reply
// event on success, or the mapped error/info event on failure.
func (d *Dispatcher) Deliver(c *Client, reply *Event, err error) {
	if err != nil {
		d.reportError(c, err)
		return
	}
	if reply != nil {
		c.Send(reply)
	}
}

func (d *Dispatcher) route(ctx context.Context, user *store.User, scope, command, name, flag string) (*Event, error) {
	switch command {
	case "/join":
		if name == "" {
			return nil, coreError(ErrCodeBadRequest, "Please specify a channel name for the /join command.")
		}
		return d.channels.JoinOrCreate(ctx, user, name, flag == "private")

	case "/leave":
		if scope == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.channels.Leave(ctx, user, scope)

	case "/cancel":
		// From inside a channel the scope wins; the general namespace
		// variant names the channel explicitly.
		target := scope
		if target == "" {
			target = name
		}
		if target == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.channels.Cancel(ctx, user, target)

	case "/quit":
		target := scope
		if target == "" {
			target = name
		}
		if target == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.channels.Delete(ctx, user, target)

	case "/invite":
		if scope == "" || name == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.channels.Invite(ctx, user, scope, name)

	case "/revoke":
		if scope == "" || name == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.channels.Revoke(ctx, user, scope, name)

	case "/kick":
		if scope == "" || name == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.kicks.Kick(ctx, user, scope, name)

	case "/list":
		if scope == "" {
			return nil, coreError(ErrCodeBadRequest, "Channel name not found.")
		}
		return d.messages.RosterMessage(ctx, user, scope)

	default:
		return nil, coreError(ErrCodeBadRequest, "Unknown command.")
	}
}

// Typing notifies the channel room of a typing signal. Never persisted;
// the sender's own connections are skipped.
func (d *Dispatcher) Typing(ctx context.Context, c *Client, channelName string) {
	ch, ok := d.ephemeralTarget(ctx, channelName)
	if !ok {
		return
	}
	d.hub.EmitToChannel(ctx, ch.ID, c.UserID, NewEvent(EventUserTyping, proto.TypingPayload{
		ChannelName: ch.Name,
		User:        c.Nickname,
	}))
}

// DraftUpdate shares an ephemeral draft preview with the channel room.
// Never persisted.
func (d *Dispatcher) DraftUpdate(ctx context.Context, c *Client, channelName, draft string) {
	ch, ok := d.ephemeralTarget(ctx, channelName)
	if !ok {
		return
	}
	d.hub.EmitToChannel(ctx, ch.ID, c.UserID, NewEvent(EventUserDraft, proto.DraftPayload{
		ChannelName: ch.Name,
		User:        c.Nickname,
		Draft:       draft,
	}))
}

// ephemeralTarget resolves the channel room for typing and draft
// signals. An unknown channel drops the signal silently.
func (d *Dispatcher) ephemeralTarget(ctx context.Context, channelName string) (*store.Channel, bool) {
	ch, err := d.store.GetChannelByName(ctx, sanitize(channelName))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Warn().Err(err).Str("channel", channelName).Msg("resolve ephemeral target")
		}
		return nil, false
	}
	return ch, true
}

// reportError maps a service error to an error or info event for the
// calling connection. Unexpected errors are logged and masked.
func (d *Dispatcher) reportError(c *Client, err error) {
	var ce *CoreError
	if errors.As(err, &ce) {
		name := EventError
		if ce.IsInfo() {
			name = EventInfo
		}
		c.Send(NewEvent(name, ce.Message))
		return
	}

	d.log.Error().Err(err).Int64("user_id", c.UserID).Msg("command failed")
	c.Send(NewEvent(EventError, "Something went wrong. Please try again."))
}

// sanitize strips line breaks and markup artifacts from client input.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "<br>", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}
