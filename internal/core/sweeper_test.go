package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seenup/seenup-server/internal/store"
)

func TestSweepDeletesStaleChannels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	aliceClient := env.connect(alice)

	if _, err := env.channels.JoinOrCreate(ctx, alice, "stale", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, alice, "fresh", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	stale, _ := env.store.GetChannelByName(ctx, "stale")
	fresh, _ := env.store.GetChannelByName(ctx, "fresh")

	// The stale channel's latest message is past the threshold, the
	// fresh one's is recent.
	if err := env.store.SaveMessage(ctx, &store.Message{
		ChannelID: stale.ID,
		UserID:    alice.ID,
		Body:      "old",
		CreatedAt: time.Now().UTC().Add(-31 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("save old message: %v", err)
	}
	if err := env.store.SaveMessage(ctx, &store.Message{
		ChannelID: fresh.ID,
		UserID:    alice.ID,
		Body:      "new",
		CreatedAt: time.Now().UTC().Add(-29 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("save recent message: %v", err)
	}
	drain(aliceClient)

	deleted, err := env.sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 channel deleted, got %d", deleted)
	}

	if _, err := env.store.GetChannelByName(ctx, "stale"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected stale channel gone, got %v", err)
	}
	if _, err := env.store.GetChannelByName(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh channel kept, got %v", err)
	}

	// Members are told the channel went away and get a fresh list.
	mustEvent(t, aliceClient.Events, EventChannelQuit)
	mustEvent(t, aliceClient.Events, EventChannelCancel)
	mustEvent(t, aliceClient.Events, EventUserChannels)
}

func TestSweepKeepsChannelsWithRecentActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if err := env.messages.Send(ctx, alice, "general", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	deleted, err := env.sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected nothing deleted, got %d", deleted)
	}
}

func TestSweepKeepsRecentlyCreatedEmptyChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	if _, err := env.channels.JoinOrCreate(ctx, alice, "empty", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	// Never had a message, but its creation time is recent.
	deleted, err := env.sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected empty recent channel kept, got %d deleted", deleted)
	}
}
