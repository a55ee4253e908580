package core

import (
	"context"
	"errors"
	"testing"

	"github.com/seenup/seenup-server/internal/proto"
)

func TestInviteToPublicChannelByMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")
	carolClient := env.connect(carol)

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, bob, "general", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	// A regular member may invite to a public channel.
	reply, err := env.channels.Invite(ctx, bob, "general", "carol")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if reply.Name != EventInfo {
		t.Fatalf("expected info reply, got %q", reply.Name)
	}

	ch, _ := env.store.GetChannelByName(ctx, "general")
	member, err := env.store.IsMember(ctx, ch.ID, carol.ID, true)
	if err != nil || !member {
		t.Fatalf("expected carol to be a member, member=%v err=%v", member, err)
	}

	// The invited user's channel list flags the new channel.
	listEv := mustEvent(t, carolClient.Events, EventUserChannels)
	payload, ok := listEv.Data.(proto.ChannelListPayload)
	if !ok || payload.NewChannel != "general" {
		t.Fatalf("expected channel list flagging general, got %+v", listEv.Data)
	}
}

func TestInviteToPublicChannelRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	env.seedUser(t, "carol")

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	_, err := env.channels.Invite(ctx, bob, "general", "carol")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}
}

func TestInviteToPrivateChannelAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")

	if _, err := env.channels.JoinOrCreate(ctx, alice, "secret", true); err != nil {
		t.Fatalf("create private channel: %v", err)
	}
	if _, err := env.channels.Invite(ctx, alice, "secret", "bob"); err != nil {
		t.Fatalf("admin invite: %v", err)
	}

	// A non-admin member cannot invite to a private channel.
	_, err := env.channels.Invite(ctx, bob, "secret", "carol")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}

	ch, _ := env.store.GetChannelByName(ctx, "secret")
	if member, _ := env.store.IsMember(ctx, ch.ID, carol.ID, false); member {
		t.Fatal("carol must not have been attached")
	}
}

func TestInviteExistingMemberIsInfoNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, bob, "general", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err := env.channels.Invite(ctx, alice, "general", "bob")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodeAlreadyMember {
		t.Fatalf("expected already_member, got %v", err)
	}
	if !ce.IsInfo() {
		t.Fatal("already_member must surface as info, not error")
	}
}

func TestInviteBannedUserUnbansAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	carol := env.seedUser(t, "carol")

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	for _, u := range []string{"bob", "carol"} {
		user, _ := env.store.GetUserByNickname(ctx, u)
		if _, err := env.channels.JoinOrCreate(ctx, user, "general", false); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}

	ch, _ := env.store.GetChannelByName(ctx, "general")
	if err := env.store.SetMemberBanned(ctx, ch.ID, carol.ID, true); err != nil {
		t.Fatalf("ban: %v", err)
	}

	// A regular member cannot lift a ban.
	_, err := env.channels.Invite(ctx, bob, "general", "carol")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}

	// The admin can.
	if _, err := env.channels.Invite(ctx, alice, "general", "carol"); err != nil {
		t.Fatalf("admin invite of banned user: %v", err)
	}
	if banned, _ := env.store.IsBanned(ctx, ch.ID, carol.ID); banned {
		t.Fatal("expected ban lifted after admin invite")
	}

	// Carol can rejoin publicly again.
	if _, err := env.channels.JoinOrCreate(ctx, carol, "general", false); err != nil {
		t.Fatalf("rejoin after unban: %v", err)
	}
}

func TestRevokePrivateOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	if _, err := env.channels.JoinOrCreate(ctx, alice, "general", false); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := env.channels.JoinOrCreate(ctx, bob, "general", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err := env.channels.Revoke(ctx, alice, "general", "bob")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied for public revoke, got %v", err)
	}
}

func TestRevokeDetachesFromPrivateChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	bobClient := env.connect(bob)

	if _, err := env.channels.JoinOrCreate(ctx, alice, "secret", true); err != nil {
		t.Fatalf("create private channel: %v", err)
	}
	if _, err := env.channels.Invite(ctx, alice, "secret", "bob"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	drain(bobClient)

	reply, err := env.channels.Revoke(ctx, alice, "secret", "bob")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if reply.Name != EventSuccess {
		t.Fatalf("expected success reply, got %q", reply.Name)
	}

	ch, _ := env.store.GetChannelByName(ctx, "secret")
	if member, _ := env.store.IsMember(ctx, ch.ID, bob.ID, false); member {
		t.Fatal("expected bob detached")
	}

	mustEvent(t, bobClient.Events, EventUserChannels)
	mustEvent(t, bobClient.Events, EventChannelCancel)
}
