package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// kickVoteQuorum is the fixed number of distinct voters that forces a
// ban in a public channel, independent of channel size.
const kickVoteQuorum = 3

// KickCoordinator tallies per-target kick votes and converts a full
// quorum into a ban. The admin bypasses voting entirely.
type KickCoordinator struct {
	store store.Store
	hub   *Hub
	log   *zerolog.Logger
}

// NewKickCoordinator constructs the coordinator.
func NewKickCoordinator(st store.Store, hub *Hub, logger *zerolog.Logger) *KickCoordinator {
	return &KickCoordinator{store: st, hub: hub, log: logger}
}

// Kick processes a /kick request. The admin bans immediately; a regular
// member casts a vote, and the vote that completes the quorum triggers
// the ban. Banning clears all votes against the target, so the tally
// always counts votes since the last ban.
func (k *KickCoordinator) Kick(ctx context.Context, requester *store.User, channelName, nickname string) (*Event, error) {
	ch, err := k.channelByName(ctx, channelName)
	if err != nil {
		return nil, err
	}

	target, err := k.store.GetUserByNickname(ctx, nickname)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	member, err := k.store.IsMember(ctx, ch.ID, target.ID, false)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, notFound(fmt.Sprintf("%s is not a member of the channel.", target.Nickname))
	}

	if ch.AdminID != nil && *ch.AdminID == target.ID {
		return nil, permissionDenied("You cannot kick the admin of the channel.")
	}
	if requester.ID == target.ID {
		return nil, permissionDenied("You cannot vote to kick yourself.")
	}

	if ch.AdminID != nil && *ch.AdminID == requester.ID {
		if err := k.ban(ctx, ch, target); err != nil {
			return nil, err
		}
		return NewEvent(EventSuccess, fmt.Sprintf("%s has been permanently kicked from the channel.", target.Nickname)), nil
	}

	// Regular members may only vote in public channels.
	if ch.IsPrivate {
		return nil, permissionDenied("Only the admin can kick users in private channels.")
	}

	voted, err := k.store.HasKickVote(ctx, ch.ID, target.ID, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("check vote: %w", err)
	}
	if voted {
		return nil, coreError(ErrCodeAlreadyVoted, "You have already voted to kick this user.")
	}

	count, err := k.store.CountKickVotes(ctx, ch.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	if count >= kickVoteQuorum-1 {
		// This vote completes the quorum. Ban and clear are idempotent,
		// so a racing duplicate transition is harmless.
		if err := k.ban(ctx, ch, target); err != nil {
			return nil, err
		}
		return NewEvent(EventSuccess, fmt.Sprintf("%s has been permanently kicked from the channel.", target.Nickname)), nil
	}

	if _, err := k.store.AddKickVote(ctx, ch.ID, target.ID, requester.ID); err != nil {
		return nil, fmt.Errorf("record vote: %w", err)
	}

	remaining := kickVoteQuorum - 1 - count
	return NewEvent(EventInfo, fmt.Sprintf("Vote to kick %s has been added. %d more votes needed.", target.Nickname, remaining)), nil
}

// ban marks the membership banned, clears the tally and tells the target
// their channel list changed.
func (k *KickCoordinator) ban(ctx context.Context, ch *store.Channel, target *store.User) error {
	if err := k.store.SetMemberBanned(ctx, ch.ID, target.ID, true); err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	if err := k.store.ClearKickVotes(ctx, ch.ID, target.ID); err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}

	k.hub.PushChannelList(ctx, target.ID, "")
	k.hub.EmitToUser(target.ID, NewEvent(EventChannelCancel, proto.ChannelRefPayload{ChannelName: ch.Name}))

	k.log.Info().Str("channel", ch.Name).Int64("target_id", target.ID).Msg("member banned")
	return nil
}

func (k *KickCoordinator) channelByName(ctx context.Context, name string) (*store.Channel, error) {
	ch, err := k.store.GetChannelByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Channel not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	return ch, nil
}
