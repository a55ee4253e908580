package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// DefaultInactivityAge is how long a channel may go without a message
// before the sweep removes it.
const DefaultInactivityAge = 30 * 24 * time.Hour

// Sweeper deletes channels that have seen no messages for the configured
// age. Each channel is handled independently, so an interrupted sweep
// simply resumes on the next run.
type Sweeper struct {
	store  store.Store
	hub    *Hub
	log    *zerolog.Logger
	maxAge time.Duration
}

// NewSweeper constructs a sweeper. maxAge <= 0 falls back to the default.
func NewSweeper(st store.Store, hub *Hub, logger *zerolog.Logger, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultInactivityAge
	}
	return &Sweeper{store: st, hub: hub, log: logger, maxAge: maxAge}
}

// Run sweeps on the given interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("channel sweep failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce deletes all currently inactive channels and returns how many
// were removed. A channel qualifies when its latest message — or its
// creation time, if it never had one — is older than the cutoff.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	channels, err := s.store.ListInactiveChannels(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, ch := range channels {
		members, err := s.store.MembersOf(ctx, ch.ID, false)
		if err != nil {
			s.log.Warn().Err(err).Str("channel", ch.Name).Msg("load members for sweep")
			continue
		}

		for _, m := range members {
			s.hub.EmitToUser(m.ID, NewEvent(EventChannelQuit, proto.ChannelRefPayload{ChannelName: ch.Name}))
			s.hub.EmitToUser(m.ID, NewEvent(EventChannelCancel, proto.ChannelRefPayload{ChannelName: ch.Name}))
		}

		if err := s.store.DeleteChannel(ctx, ch.ID); err != nil {
			s.log.Warn().Err(err).Str("channel", ch.Name).Msg("delete inactive channel")
			continue
		}

		// List refresh goes out after the delete so it reflects the
		// post-delete state.
		for _, m := range members {
			s.hub.PushChannelList(ctx, m.ID, "")
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("inactive channels removed")
	}
	return deleted, nil
}
