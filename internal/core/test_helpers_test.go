package core

import (
	"context"
	"testing"
	"time"

	"github.com/seenup/seenup-server/internal/log"
	"github.com/seenup/seenup-server/internal/store"
	"github.com/seenup/seenup-server/internal/store/sqlite"
)

// testEnv wires the core services over an in-memory store.
type testEnv struct {
	store      store.Store
	hub        *Hub
	presence   *Presence
	channels   *Channels
	kicks      *KickCoordinator
	messages   *Messages
	dispatcher *Dispatcher
	sweeper    *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := log.New("error")
	hub := NewHub(NewRegistry(), st, logger)
	channels := NewChannels(st, hub, logger)
	kicks := NewKickCoordinator(st, hub, logger)
	messages := NewMessages(st, hub, logger)

	return &testEnv{
		store:      st,
		hub:        hub,
		presence:   NewPresence(st, hub, logger),
		channels:   channels,
		kicks:      kicks,
		messages:   messages,
		dispatcher: NewDispatcher(st, channels, kicks, messages, hub, logger),
		sweeper:    NewSweeper(st, hub, logger, DefaultInactivityAge),
	}
}

func (env *testEnv) seedUser(t *testing.T, nickname string) *store.User {
	t.Helper()

	user, err := env.store.CreateUser(context.Background(), nickname, "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", nickname, err)
	}
	return user
}

// connect registers a new connection for the user, bypassing the
// presence announcements. Tests that exercise presence call
// env.presence.Connect themselves.
func (env *testEnv) connect(user *store.User) *Client {
	c := NewClient(user.ID, user.Nickname)
	env.hub.Registry().Register(c)
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, name string) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Name == name {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event %q not received", name)
	return nil
}

// drain empties the client's buffer and returns everything it held.
func drain(c *Client) []*Event {
	var events []*Event
	for {
		select {
		case ev := <-c.Events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func countEvents(events []*Event, name string) int {
	n := 0
	for _, ev := range events {
		if ev.Name == name {
			n++
		}
	}
	return n
}
