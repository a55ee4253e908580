package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// Invite attaches a user to a channel. Private channels accept invites
// from their admin only; public channels from any member. Inviting a
// banned user clears the ban, but only the admin may do that.
func (s *Channels) Invite(ctx context.Context, requester *store.User, channelName, nickname string) (*Event, error) {
	ch, err := s.channelByName(ctx, channelName)
	if err != nil {
		return nil, err
	}

	target, err := s.userByNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}

	if ch.IsPrivate {
		if !isAdmin(ch, requester.ID) {
			return nil, permissionDenied("Only the channel admin can invite users to this private channel.")
		}
	} else {
		member, err := s.store.IsMember(ctx, ch.ID, requester.ID, true)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return nil, permissionDenied("Only channel members can invite users to this public channel.")
		}
	}

	banned, err := s.store.IsBanned(ctx, ch.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}

	switch {
	case banned:
		// A ban is reversible only by the admin.
		if !isAdmin(ch, requester.ID) {
			return nil, permissionDenied("Only the channel admin can invite banned users.")
		}
		if err := s.store.SetMemberBanned(ctx, ch.ID, target.ID, false); err != nil {
			return nil, fmt.Errorf("clear ban: %w", err)
		}
	default:
		member, err := s.store.IsMember(ctx, ch.ID, target.ID, false)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if member {
			return nil, coreError(ErrCodeAlreadyMember, fmt.Sprintf("%s is already a member of the channel.", target.Nickname))
		}
		if err := s.store.AddMember(ctx, ch.ID, target.ID); err != nil {
			return nil, fmt.Errorf("attach membership: %w", err)
		}
	}

	// The invited channel is flagged so the target's client sorts it first.
	s.hub.PushChannelList(ctx, target.ID, ch.Name)
	s.emitRoster(ctx, ch)

	return NewEvent(EventInfo, fmt.Sprintf("%s has been invited to the channel.", target.Nickname)), nil
}

// Revoke detaches a user from a private channel. Admin only; public
// channels have no revocation, members leave or get kicked.
func (s *Channels) Revoke(ctx context.Context, requester *store.User, channelName, nickname string) (*Event, error) {
	ch, err := s.channelByName(ctx, channelName)
	if err != nil {
		return nil, err
	}

	if !ch.IsPrivate {
		return nil, permissionDenied("Users can only be revoked from private channels.")
	}
	if !isAdmin(ch, requester.ID) {
		return nil, permissionDenied("Only the channel admin can revoke users from this private channel.")
	}

	target, err := s.userByNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}

	member, err := s.store.IsMember(ctx, ch.ID, target.ID, false)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, notFound(fmt.Sprintf("%s is not a member of the channel.", target.Nickname))
	}

	if err := s.store.RemoveMember(ctx, ch.ID, target.ID); err != nil {
		return nil, fmt.Errorf("detach membership: %w", err)
	}

	s.hub.PushChannelList(ctx, target.ID, "")
	s.hub.EmitToUser(target.ID, NewEvent(EventChannelCancel, proto.ChannelRefPayload{ChannelName: ch.Name}))
	s.emitRoster(ctx, ch)

	return NewEvent(EventSuccess, fmt.Sprintf("%s has been removed from the channel.", target.Nickname)), nil
}

func (s *Channels) userByNickname(ctx context.Context, nickname string) (*store.User, error) {
	user, err := s.store.GetUserByNickname(ctx, nickname)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
