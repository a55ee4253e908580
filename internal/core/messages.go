package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

const defaultHistoryLimit = 50

// Messages persists chat messages and fans them out to channel members.
type Messages struct {
	store store.Store
	hub   *Hub
	log   *zerolog.Logger
}

// NewMessages constructs the message service.
func NewMessages(st store.Store, hub *Hub, logger *zerolog.Logger) *Messages {
	return &Messages{store: st, hub: hub, log: logger}
}

// Send persists a message from a channel member and delivers it to the
// channel room, including the sender's other connections.
func (m *Messages) Send(ctx context.Context, user *store.User, channelName, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return coreError(ErrCodeBadRequest, "Message body is required.")
	}

	ch, err := m.channelByName(ctx, channelName)
	if err != nil {
		return err
	}

	member, err := m.store.IsMember(ctx, ch.ID, user.ID, true)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return permissionDenied("Only channel members can send messages.")
	}

	msg := &store.Message{
		ChannelID: ch.ID,
		UserID:    user.ID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	m.hub.EmitToChannel(ctx, ch.ID, 0, NewEvent(EventMessage, proto.MessagePayload{
		ID:          msg.ID,
		ChannelName: ch.Name,
		From:        user.Nickname,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt.Unix(),
	}))
	return nil
}

// History replies with a page of channel history, newest first.
func (m *Messages) History(ctx context.Context, user *store.User, channelName string, limit int, beforeID *int64) (*Event, error) {
	ch, err := m.channelByName(ctx, channelName)
	if err != nil {
		return nil, err
	}

	member, err := m.store.IsMember(ctx, ch.ID, user.ID, true)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, permissionDenied("Only channel members can load messages.")
	}

	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	messages, err := m.store.ListMessages(ctx, ch.ID, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	senders, err := m.senderNames(ctx, messages)
	if err != nil {
		return nil, err
	}

	payload := proto.HistoryPayload{
		ChannelName: ch.Name,
		Messages: lo.Map(messages, func(msg *store.Message, _ int) proto.MessagePayload {
			return proto.MessagePayload{
				ID:          msg.ID,
				ChannelName: ch.Name,
				From:        senders[msg.UserID],
				Body:        msg.Body,
				CreatedAt:   msg.CreatedAt.Unix(),
			}
		}),
	}
	return NewEvent(EventHistory, payload), nil
}

// RosterMessage handles /list: it formats the member roster as a chat
// message, persists it and replies with the stored message.
func (m *Messages) RosterMessage(ctx context.Context, user *store.User, channelName string) (*Event, error) {
	ch, err := m.channelByName(ctx, channelName)
	if err != nil {
		return nil, err
	}

	users, err := m.store.MembersOf(ctx, ch.ID, true)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	msg := &store.Message{
		ChannelID: ch.ID,
		UserID:    user.ID,
		Body:      formatRoster(nicknames(users), user.Nickname),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	return NewEvent(EventMessageList, proto.MessagePayload{
		ID:          msg.ID,
		ChannelName: ch.Name,
		From:        user.Nickname,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt.Unix(),
	}), nil
}

func (m *Messages) channelByName(ctx context.Context, name string) (*store.Channel, error) {
	ch, err := m.store.GetChannelByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Channel not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	return ch, nil
}

func (m *Messages) senderNames(ctx context.Context, messages []*store.Message) (map[int64]string, error) {
	ids := lo.Uniq(lo.Map(messages, func(msg *store.Message, _ int) int64 {
		return msg.UserID
	}))

	users, err := m.store.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}

	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Nickname
	}
	return names, nil
}

// formatRoster renders the member list with the requester shown as "You"
// and listed last.
func formatRoster(members []string, requester string) string {
	names := lo.FilterMap(members, func(name string, _ int) (string, bool) {
		return "@" + name, name != requester
	})
	names = append(names, "You")

	var listed string
	if len(names) > 1 {
		listed = strings.Join(names[:len(names)-1], " , ") + " and " + names[len(names)-1]
	} else {
		listed = names[0]
	}
	return "/list Users here: " + listed
}
