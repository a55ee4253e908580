package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// Channels manages channel lifecycle and membership. Methods mutate the
// store first and fan out to affected rooms only after the mutation
// succeeded; the returned event, if any, is the reply for the calling
// connection alone.
type Channels struct {
	store store.Store
	hub   *Hub
	log   *zerolog.Logger
}

// NewChannels constructs the channel lifecycle manager.
func NewChannels(st store.Store, hub *Hub, logger *zerolog.Logger) *Channels {
	return &Channels{store: st, hub: hub, log: logger}
}

// JoinOrCreate joins an existing channel or creates it with the user as
// admin. Banned members cannot rejoin; private channels admit only their
// admin. Rejoining as an existing member is a harmless no-op.
func (s *Channels) JoinOrCreate(ctx context.Context, user *store.User, name string, isPrivate bool) (*Event, error) {
	ch, err := s.store.GetChannelByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return s.create(ctx, user, name, isPrivate)
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}

	banned, err := s.store.IsBanned(ctx, ch.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return nil, coreError(ErrCodeBanned, "You are banned from this channel.")
	}

	if ch.IsPrivate && !isAdmin(ch, user.ID) {
		return nil, permissionDenied("Only the admin can join or invite others to private channels.")
	}

	member, err := s.store.IsMember(ctx, ch.ID, user.ID, false)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		if err := s.store.AddMember(ctx, ch.ID, user.ID); err != nil {
			return nil, fmt.Errorf("attach membership: %w", err)
		}
	}

	s.hub.EmitToUser(user.ID, NewEvent(EventJoinChannel, proto.JoinChannelPayload{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		IsPrivate:   ch.IsPrivate,
		UserID:      user.ID,
	}))
	s.hub.PushChannelList(ctx, user.ID, "")

	if !member {
		s.hub.EmitToChannel(ctx, ch.ID, user.ID, NewEvent(EventUserJoined, proto.UserJoinedPayload{
			ChannelID: ch.ID,
			UserID:    user.ID,
			Nickname:  user.Nickname,
		}))
	}

	return NewEvent(EventSuccess, fmt.Sprintf("You have joined %s", ch.Name)), nil
}

// create makes a new channel with the requester as admin. Creating
// implicitly joins, and there is nobody else to notify yet.
func (s *Channels) create(ctx context.Context, user *store.User, name string, isPrivate bool) (*Event, error) {
	ch, err := s.store.CreateChannel(ctx, name, isPrivate, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := s.store.AddMember(ctx, ch.ID, user.ID); err != nil {
		return nil, fmt.Errorf("attach admin membership: %w", err)
	}

	s.hub.EmitToUser(user.ID, NewEvent(EventJoinChannel, proto.JoinChannelPayload{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		IsPrivate:   ch.IsPrivate,
		UserID:      user.ID,
	}))
	s.hub.PushChannelList(ctx, user.ID, "")

	s.log.Info().Str("channel", ch.Name).Int64("admin_id", user.ID).Bool("private", ch.IsPrivate).Msg("channel created")
	return NewEvent(EventSuccess, fmt.Sprintf("You have joined %s", ch.Name)), nil
}

// Leave detaches the user from a channel. A ban survives leaving: the
// banned row stays so the user remains blocked from public rejoin.
// Leaving is confirmed to the leaving user's room only.
func (s *Channels) Leave(ctx context.Context, user *store.User, name string) (*Event, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return nil, err
	}

	banned, err := s.store.IsBanned(ctx, ch.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}
	if !banned {
		if err := s.store.RemoveMember(ctx, ch.ID, user.ID); err != nil {
			return nil, fmt.Errorf("detach membership: %w", err)
		}
	}

	s.hub.EmitToUser(user.ID, NewEvent(EventChannelCancel, proto.ChannelRefPayload{ChannelName: ch.Name}))
	s.hub.PushChannelList(ctx, user.ID, "")
	return nil, nil
}

// Cancel leaves a channel, or deletes it when the requester is the admin.
func (s *Channels) Cancel(ctx context.Context, user *store.User, name string) (*Event, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if isAdmin(ch, user.ID) {
		return s.deleteChannel(ctx, ch)
	}
	return s.Leave(ctx, user, name)
}

// Delete removes a channel entirely. Admin only.
func (s *Channels) Delete(ctx context.Context, user *store.User, name string) (*Event, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !isAdmin(ch, user.ID) {
		return nil, permissionDenied("Only the admin can delete the channel.")
	}
	return s.deleteChannel(ctx, ch)
}

// deleteChannel cascades memberships and votes away with the channel and
// tells every former member their list changed.
func (s *Channels) deleteChannel(ctx context.Context, ch *store.Channel) (*Event, error) {
	members, err := s.store.MembersOf(ctx, ch.ID, false)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	if err := s.store.DeleteChannel(ctx, ch.ID); err != nil {
		return nil, fmt.Errorf("delete channel: %w", err)
	}

	for _, m := range members {
		s.hub.EmitToUser(m.ID, NewEvent(EventChannelQuit, proto.ChannelRefPayload{ChannelName: ch.Name}))
		s.hub.PushChannelList(ctx, m.ID, "")
	}

	s.log.Info().Str("channel", ch.Name).Int("members", len(members)).Msg("channel deleted")
	return NewEvent(EventChannelQuit, proto.ChannelRefPayload{ChannelName: ch.Name}), nil
}

// Members replies with the channel's member roster, banned rows excluded.
func (s *Channels) Members(ctx context.Context, name string) (*Event, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return nil, err
	}

	users, err := s.store.MembersOf(ctx, ch.ID, true)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	return NewEvent(EventChannelUsers, proto.ChannelUsersPayload{
		ChannelName: ch.Name,
		Users:       nicknames(users),
	}), nil
}

// AdminCheck replies whether the user administers the channel.
func (s *Channels) AdminCheck(ctx context.Context, user *store.User, name string) (*Event, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewEvent(EventUserIsAdmin, isAdmin(ch, user.ID)), nil
}

// IsAdmin reports whether the user administers the named channel.
func (s *Channels) IsAdmin(ctx context.Context, userID int64, name string) (bool, error) {
	ch, err := s.channelByName(ctx, name)
	if err != nil {
		return false, err
	}
	return isAdmin(ch, userID), nil
}

func (s *Channels) channelByName(ctx context.Context, name string) (*store.Channel, error) {
	ch, err := s.store.GetChannelByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Channel not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	return ch, nil
}

// emitRoster pushes the current member roster to the whole channel room.
func (s *Channels) emitRoster(ctx context.Context, ch *store.Channel) {
	users, err := s.store.MembersOf(ctx, ch.ID, true)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", ch.Name).Msg("load roster")
		return
	}
	s.hub.EmitToChannel(ctx, ch.ID, 0, NewEvent(EventChannelUsers, proto.ChannelUsersPayload{
		ChannelName: ch.Name,
		Users:       nicknames(users),
	}))
}

func isAdmin(ch *store.Channel, userID int64) bool {
	return ch.AdminID != nil && *ch.AdminID == userID
}

func nicknames(users []*store.User) []string {
	return lo.Map(users, func(u *store.User, _ int) string {
		return u.Nickname
	})
}
