package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seenup/seenup-server/internal/store"
)

// seedChannel creates a public channel with an admin and the given
// members, returning admin, members and the channel row.
func seedChannel(t *testing.T, env *testEnv, name string, memberNames ...string) (*store.User, []*store.User, *store.Channel) {
	t.Helper()
	ctx := context.Background()

	admin := env.seedUser(t, "admin")
	if _, err := env.channels.JoinOrCreate(ctx, admin, name, false); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	members := make([]*store.User, 0, len(memberNames))
	for _, n := range memberNames {
		u := env.seedUser(t, n)
		if _, err := env.channels.JoinOrCreate(ctx, u, name, false); err != nil {
			t.Fatalf("join %s: %v", n, err)
		}
		members = append(members, u)
	}

	ch, err := env.store.GetChannelByName(ctx, name)
	if err != nil {
		t.Fatalf("load channel: %v", err)
	}
	return admin, members, ch
}

func TestKickQuorumBans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, members, ch := seedChannel(t, env, "general", "bob", "carol", "dave", "eve")
	bob, carol, dave, eve := members[0], members[1], members[2], members[3]

	// First two votes only tally.
	reply, err := env.kicks.Kick(ctx, carol, "general", "bob")
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if reply.Name != EventInfo {
		t.Fatalf("expected info reply, got %q", reply.Name)
	}
	if got, want := reply.Data.(string), "Vote to kick bob has been added. 2 more votes needed."; got != want {
		t.Fatalf("unexpected first vote message: %q", got)
	}

	reply, err = env.kicks.Kick(ctx, dave, "general", "bob")
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if got, want := reply.Data.(string), "Vote to kick bob has been added. 1 more votes needed."; got != want {
		t.Fatalf("unexpected second vote message: %q", got)
	}

	if banned, _ := env.store.IsBanned(ctx, ch.ID, bob.ID); banned {
		t.Fatal("two votes must not ban")
	}

	// The third distinct vote completes the quorum.
	reply, err = env.kicks.Kick(ctx, eve, "general", "bob")
	if err != nil {
		t.Fatalf("third vote: %v", err)
	}
	if reply.Name != EventSuccess {
		t.Fatalf("expected success on quorum, got %q", reply.Name)
	}

	banned, err := env.store.IsBanned(ctx, ch.ID, bob.ID)
	if err != nil || !banned {
		t.Fatalf("expected bob banned, banned=%v err=%v", banned, err)
	}

	// The tally resets with the ban.
	count, err := env.store.CountKickVotes(ctx, ch.ID, bob.ID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected votes cleared after ban, got %d", count)
	}
}

func TestKickDuplicateVoteRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, members, _ := seedChannel(t, env, "general", "bob", "carol")
	carol := members[1]

	if _, err := env.kicks.Kick(ctx, carol, "general", "bob"); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	_, err := env.kicks.Kick(ctx, carol, "general", "bob")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodeAlreadyVoted {
		t.Fatalf("expected already_voted, got %v", err)
	}
	if !ce.IsInfo() {
		t.Fatal("already_voted must surface as info")
	}
}

func TestKickByAdminBansImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, members, ch := seedChannel(t, env, "general", "bob")
	bob := members[0]
	bobClient := env.connect(bob)

	reply, err := env.kicks.Kick(ctx, admin, "general", "bob")
	if err != nil {
		t.Fatalf("admin kick: %v", err)
	}
	if reply.Name != EventSuccess {
		t.Fatalf("expected success, got %q", reply.Name)
	}

	if banned, _ := env.store.IsBanned(ctx, ch.ID, bob.ID); !banned {
		t.Fatal("expected bob banned after admin kick")
	}

	// The target's list drops the channel and their client is told.
	mustEvent(t, bobClient.Events, EventUserChannels)
	mustEvent(t, bobClient.Events, EventChannelCancel)
}

func TestKickSelfVoteRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, members, _ := seedChannel(t, env, "general", "bob")
	bob := members[0]

	_, err := env.kicks.Kick(ctx, bob, "general", "bob")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied for self vote, got %v", err)
	}
}

func TestKickAdminTargetRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, members, _ := seedChannel(t, env, "general", "bob")
	bob := members[0]

	_, err := env.kicks.Kick(ctx, bob, "general", "admin")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied for admin target, got %v", err)
	}
}

func TestKickVoteRejectedInPrivateChannel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin")
	bob := env.seedUser(t, "bob")
	env.seedUser(t, "carol")

	if _, err := env.channels.JoinOrCreate(ctx, admin, "secret", true); err != nil {
		t.Fatalf("create private channel: %v", err)
	}
	for _, n := range []string{"bob", "carol"} {
		if _, err := env.channels.Invite(ctx, admin, "secret", n); err != nil {
			t.Fatalf("invite %s: %v", n, err)
		}
	}

	// Regular members cannot vote in private channels.
	_, err := env.kicks.Kick(ctx, bob, "secret", "carol")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}

	// The admin still kicks directly.
	if _, err := env.kicks.Kick(ctx, admin, "secret", "bob"); err != nil {
		t.Fatalf("admin kick in private channel: %v", err)
	}
}

func TestKickNonMemberTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, members, _ := seedChannel(t, env, "general", "bob")
	env.seedUser(t, "outsider")

	_, err := env.kicks.Kick(ctx, members[0], "general", "outsider")
	var ce *CoreError
	if !errors.As(err, &ce) || ce.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found for non-member target, got %v", err)
	}
}

func TestKickTallyRestartsAfterUnban(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, members, ch := seedChannel(t, env, "general", "bob", "carol", "dave", "eve")
	bob := members[0]

	// Reach quorum once.
	for i, voter := range []*store.User{members[1], members[2], members[3]} {
		if _, err := env.kicks.Kick(ctx, voter, "general", "bob"); err != nil {
			t.Fatalf("vote %d: %v", i+1, err)
		}
	}
	if banned, _ := env.store.IsBanned(ctx, ch.ID, bob.ID); !banned {
		t.Fatal("expected ban after quorum")
	}

	// Admin re-invites; a fresh campaign needs a full quorum again.
	if _, err := env.channels.Invite(ctx, admin, "general", "bob"); err != nil {
		t.Fatalf("unban invite: %v", err)
	}

	reply, err := env.kicks.Kick(ctx, members[1], "general", "bob")
	if err != nil {
		t.Fatalf("fresh vote: %v", err)
	}
	want := fmt.Sprintf("Vote to kick bob has been added. %d more votes needed.", kickVoteQuorum-1)
	if got := reply.Data.(string); got != want {
		t.Fatalf("unexpected fresh vote message: %q", got)
	}
}
