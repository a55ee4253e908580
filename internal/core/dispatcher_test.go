package core

import (
	"context"
	"strings"
	"testing"

	"github.com/seenup/seenup-server/internal/proto"
)

func TestDispatcherJoinRequiresChannelName(t *testing.T) {
	env := newTestEnv(t)

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(context.Background(), c, "", "/join", "", "")

	ev := mustEvent(t, c.Events, EventError)
	if msg, _ := ev.Data.(string); !strings.Contains(msg, "/join") {
		t.Fatalf("unexpected error message: %v", ev.Data)
	}
}

func TestDispatcherUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(context.Background(), c, "", "/frobnicate", "", "")

	ev := mustEvent(t, c.Events, EventError)
	if msg, _ := ev.Data.(string); msg != "Unknown command." {
		t.Fatalf("unexpected error message: %v", ev.Data)
	}
}

func TestDispatcherJoinCreatesChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", "general", "")
	mustEvent(t, c.Events, EventSuccess)

	if _, err := env.store.GetChannelByName(ctx, "general"); err != nil {
		t.Fatalf("expected channel created, got %v", err)
	}
}

func TestDispatcherJoinPrivateFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", "secret", "private")
	mustEvent(t, c.Events, EventSuccess)

	ch, err := env.store.GetChannelByName(ctx, "secret")
	if err != nil {
		t.Fatalf("load channel: %v", err)
	}
	if !ch.IsPrivate {
		t.Fatal("expected a private channel")
	}
}

func TestDispatcherSanitizesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", " general<br>\n ", "")
	mustEvent(t, c.Events, EventSuccess)

	if _, err := env.store.GetChannelByName(ctx, "general"); err != nil {
		t.Fatalf("expected sanitized channel name, got %v", err)
	}
}

func TestDispatcherCancelPrefersScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", "scoped", "")
	env.dispatcher.Execute(ctx, c, "", "/join", "named", "")
	drain(c)

	// Typed inside "scoped", the explicit name argument is ignored.
	env.dispatcher.Execute(ctx, c, "scoped", "/cancel", "named", "")

	if _, err := env.store.GetChannelByName(ctx, "scoped"); err == nil {
		t.Fatal("expected scoped channel deleted")
	}
	if _, err := env.store.GetChannelByName(ctx, "named"); err != nil {
		t.Fatalf("expected named channel kept, got %v", err)
	}
}

func TestDispatcherInfoOutcomeForDuplicateInvite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	env.seedUser(t, "bob")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", "general", "")
	env.dispatcher.Execute(ctx, c, "general", "/invite", "bob", "")
	drain(c)

	// The duplicate invite is a harmless no-op, surfaced as info.
	env.dispatcher.Execute(ctx, c, "general", "/invite", "bob", "")
	ev := mustEvent(t, c.Events, EventInfo)
	if msg, _ := ev.Data.(string); !strings.Contains(msg, "already a member") {
		t.Fatalf("unexpected info message: %v", ev.Data)
	}
}

func TestDispatcherListPersistsRosterMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	env.seedUser(t, "bob")
	c := env.connect(alice)

	env.dispatcher.Execute(ctx, c, "", "/join", "general", "")
	env.dispatcher.Execute(ctx, c, "general", "/invite", "bob", "")
	drain(c)

	env.dispatcher.Execute(ctx, c, "general", "/list", "", "")

	ev := mustEvent(t, c.Events, EventMessageList)
	payload, ok := ev.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Data)
	}
	if payload.Body != "/list Users here: @bob and You" {
		t.Fatalf("unexpected roster message: %q", payload.Body)
	}

	ch, _ := env.store.GetChannelByName(ctx, "general")
	messages, err := env.store.ListMessages(ctx, ch.ID, 10, nil)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Body != payload.Body {
		t.Fatalf("expected persisted roster message, got %+v", messages)
	}
}

func TestDispatcherTypingScopedToChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")
	aliceClient := env.connect(alice)
	bobClient := env.connect(bob)
	carolClient := env.connect(carol)

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, bob, "general", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	drain(aliceClient)
	drain(bobClient)

	env.dispatcher.Typing(ctx, aliceClient, "general")

	ev := mustEvent(t, bobClient.Events, EventUserTyping)
	payload, ok := ev.Data.(proto.TypingPayload)
	if !ok || payload.User != "alice" || payload.ChannelName != "general" {
		t.Fatalf("unexpected typing payload: %+v", ev.Data)
	}

	// Non-members hear nothing, and the typist never hears their own
	// typing.
	if got := countEvents(drain(carolClient), EventUserTyping); got != 0 {
		t.Fatalf("expected no typing event for non-member, got %d", got)
	}
	if got := countEvents(drain(aliceClient), EventUserTyping); got != 0 {
		t.Fatalf("expected no echo to the typist, got %d", got)
	}

	ch, err := env.store.GetChannelByName(ctx, "general")
	if err != nil {
		t.Fatalf("load channel: %v", err)
	}
	if messages, _ := env.store.ListMessages(ctx, ch.ID, 10, nil); len(messages) != 0 {
		t.Fatalf("typing must not persist anything, got %d messages", len(messages))
	}
}

func TestDispatcherDraftScopedToChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")
	aliceClient := env.connect(alice)
	bobClient := env.connect(bob)
	carolClient := env.connect(carol)

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, bob, "general", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	drain(aliceClient)
	drain(bobClient)

	env.dispatcher.DraftUpdate(ctx, aliceClient, "general", "hel")

	ev := mustEvent(t, bobClient.Events, EventUserDraft)
	payload, ok := ev.Data.(proto.DraftPayload)
	if !ok || payload.User != "alice" || payload.Draft != "hel" {
		t.Fatalf("unexpected draft payload: %+v", ev.Data)
	}
	if got := countEvents(drain(carolClient), EventUserDraft); got != 0 {
		t.Fatalf("expected no draft event for non-member, got %d", got)
	}

	// An unknown channel drops the signal.
	env.dispatcher.DraftUpdate(ctx, aliceClient, "nowhere", "hel")
	if got := countEvents(drain(bobClient), EventUserDraft); got != 0 {
		t.Fatalf("expected no draft event for unknown channel, got %d", got)
	}
}
