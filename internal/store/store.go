package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UserStatus is the presence status a user has chosen.
type UserStatus string

const (
	StatusActive  UserStatus = "active"
	StatusDND     UserStatus = "dnd"
	StatusOffline UserStatus = "offline"
)

// Valid reports whether the status is one of the known values.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDND, StatusOffline:
		return true
	}
	return false
}

// User represents a registered user.
type User struct {
	ID           int64
	Nickname     string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
}

// Channel represents a chat channel.
type Channel struct {
	ID        int64
	Name      string
	IsPrivate bool
	AdminID   *int64 // nil once the admin row is gone
	CreatedAt time.Time
}

// Membership is the relation between a user and a channel.
// A row with IsBanned set blocks public rejoin but keeps the user
// re-invitable by the channel admin.
type Membership struct {
	ChannelID int64
	UserID    int64
	IsBanned  bool
	JoinedAt  time.Time
}

// KickVote is a single member's vote to ban a target from a channel.
// At most one vote per (channel, target, voter).
type KickVote struct {
	ChannelID int64
	TargetID  int64
	VoterID   int64
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	ChannelID int64
	UserID    int64
	Body      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, nickname, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByNickname retrieves a user by nickname.
	GetUserByNickname(ctx context.Context, nickname string) (*User, error)

	// ListUsersByIDs retrieves users matching the given IDs.
	ListUsersByIDs(ctx context.Context, ids []int64) ([]*User, error)

	// UpdateUserStatus persists the user's chosen presence status.
	UpdateUserStatus(ctx context.Context, userID int64, status UserStatus) error
}

// ChannelStore handles channel and membership persistence.
type ChannelStore interface {
	// CreateChannel creates a new channel with the given admin.
	CreateChannel(ctx context.Context, name string, isPrivate bool, adminID int64) (*Channel, error)

	// GetChannelByID retrieves a channel by ID.
	GetChannelByID(ctx context.Context, id int64) (*Channel, error)

	// GetChannelByName retrieves a channel by name.
	GetChannelByName(ctx context.Context, name string) (*Channel, error)

	// DeleteChannel removes a channel. Memberships, kick votes and
	// messages are removed with it.
	DeleteChannel(ctx context.Context, id int64) error

	// ListInactiveChannels returns channels whose latest message (or
	// creation time, if no messages exist) is older than the cutoff.
	ListInactiveChannels(ctx context.Context, cutoff time.Time) ([]*Channel, error)

	// AddMember attaches a user to a channel. Adding an existing
	// member is a no-op and does not touch the ban flag.
	AddMember(ctx context.Context, channelID, userID int64) error

	// RemoveMember detaches a user from a channel, banned or not.
	RemoveMember(ctx context.Context, channelID, userID int64) error

	// SetMemberBanned flips the ban flag on an existing membership.
	SetMemberBanned(ctx context.Context, channelID, userID int64, banned bool) error

	// IsMember reports whether the user has a membership row. With
	// excludeBanned set, banned rows do not count.
	IsMember(ctx context.Context, channelID, userID int64, excludeBanned bool) (bool, error)

	// IsBanned reports whether the user has a banned membership row.
	IsBanned(ctx context.Context, channelID, userID int64) (bool, error)

	// MembersOf lists users attached to a channel.
	MembersOf(ctx context.Context, channelID int64, excludeBanned bool) ([]*User, error)

	// MembershipsOf lists channels the user is attached to.
	MembershipsOf(ctx context.Context, userID int64, excludeBanned bool) ([]*Channel, error)
}

// VoteStore handles kick-vote persistence.
type VoteStore interface {
	// AddKickVote records a vote. A duplicate vote from the same voter
	// is ignored and reported as false.
	AddKickVote(ctx context.Context, channelID, targetID, voterID int64) (bool, error)

	// HasKickVote reports whether the voter already voted for the target.
	HasKickVote(ctx context.Context, channelID, targetID, voterID int64) (bool, error)

	// CountKickVotes returns the number of distinct voters against the target.
	CountKickVotes(ctx context.Context, channelID, targetID int64) (int, error)

	// ClearKickVotes deletes all votes against the target in the channel.
	ClearKickVotes(ctx context.Context, channelID, targetID int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message. The message's CreatedAt is
	// honored; ID is filled in on return.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages from a channel, newest first.
	// If beforeID is provided, returns messages older than that ID.
	ListMessages(ctx context.Context, channelID int64, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore
	VoteStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
