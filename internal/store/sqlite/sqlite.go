package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/seenup/seenup-server/internal/store"
)

// schema is applied on startup. All statements are idempotent.
// Cascades rely on the foreign_keys pragma being enabled.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	nickname      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'offline',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	is_private BOOLEAN NOT NULL DEFAULT 0,
	admin_id   INTEGER REFERENCES users(id) ON DELETE SET NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_users (
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	is_banned  BOOLEAN NOT NULL DEFAULT 0,
	joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS kick_votes (
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	target_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	voter_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (channel_id, target_id, voter_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_channel_created
	ON messages(channel_id, created_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function
// after the schema is applied. Useful for tests that seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, nickname, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (nickname, password_hash, status)
		VALUES (?, ?, 'offline')
	`
	result, err := s.db.ExecContext(ctx, query, nickname, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, nickname, password_hash, status, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByNickname retrieves a user by nickname.
func (s *SQLiteStore) GetUserByNickname(ctx context.Context, nickname string) (*store.User, error) {
	query := `
		SELECT id, nickname, password_hash, status, created_at
		FROM users
		WHERE nickname = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, nickname))
}

// ListUsersByIDs retrieves users matching the given IDs.
func (s *SQLiteStore) ListUsersByIDs(ctx context.Context, ids []int64) ([]*store.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
		SELECT id, nickname, password_hash, status, created_at
		FROM users
		WHERE id IN (` + placeholders + `)
		ORDER BY nickname
	`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// UpdateUserStatus persists the user's chosen presence status.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, userID int64, status store.UserStatus) error {
	query := `UPDATE users SET status = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, string(status), userID); err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var status string
	err := row.Scan(&user.ID, &user.Nickname, &user.PasswordHash, &status, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Status = store.UserStatus(status)
	return &user, nil
}

func scanUsers(rows *sql.Rows) ([]*store.User, error) {
	var users []*store.User
	for rows.Next() {
		var user store.User
		var status string
		if err := rows.Scan(&user.ID, &user.Nickname, &user.PasswordHash, &status, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Status = store.UserStatus(status)
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// ==== ChannelStore implementation ====

// CreateChannel creates a new channel with the given admin.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name string, isPrivate bool, adminID int64) (*store.Channel, error) {
	query := `
		INSERT INTO channels (name, is_private, admin_id)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, isPrivate, adminID)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetChannelByID(ctx, id)
}

// GetChannelByID retrieves a channel by ID.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id int64) (*store.Channel, error) {
	query := `
		SELECT id, name, is_private, admin_id, created_at
		FROM channels
		WHERE id = ?
	`
	return s.scanChannel(s.db.QueryRowContext(ctx, query, id))
}

// GetChannelByName retrieves a channel by name.
func (s *SQLiteStore) GetChannelByName(ctx context.Context, name string) (*store.Channel, error) {
	query := `
		SELECT id, name, is_private, admin_id, created_at
		FROM channels
		WHERE name = ?
	`
	return s.scanChannel(s.db.QueryRowContext(ctx, query, name))
}

// DeleteChannel removes a channel; memberships, votes and messages cascade.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, id int64) error {
	query := `DELETE FROM channels WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// ListInactiveChannels returns channels whose latest message (or creation
// time when no messages exist) is older than the cutoff.
func (s *SQLiteStore) ListInactiveChannels(ctx context.Context, cutoff time.Time) ([]*store.Channel, error) {
	query := `
		SELECT c.id, c.name, c.is_private, c.admin_id, c.created_at
		FROM channels c
		LEFT JOIN messages m ON m.channel_id = c.id
		GROUP BY c.id
		HAVING COALESCE(MAX(m.created_at), c.created_at) < ?
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query inactive channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// AddMember attaches a user to a channel. Duplicate attaches are no-ops
// and never reset the ban flag.
func (s *SQLiteStore) AddMember(ctx context.Context, channelID, userID int64) error {
	query := `
		INSERT OR IGNORE INTO channel_users (channel_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// RemoveMember detaches a user from a channel.
func (s *SQLiteStore) RemoveMember(ctx context.Context, channelID, userID int64) error {
	query := `DELETE FROM channel_users WHERE channel_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// SetMemberBanned flips the ban flag on an existing membership.
func (s *SQLiteStore) SetMemberBanned(ctx context.Context, channelID, userID int64, banned bool) error {
	query := `
		UPDATE channel_users SET is_banned = ?
		WHERE channel_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, banned, channelID, userID); err != nil {
		return fmt.Errorf("update ban flag: %w", err)
	}
	return nil
}

// IsMember reports whether the user has a membership row.
func (s *SQLiteStore) IsMember(ctx context.Context, channelID, userID int64, excludeBanned bool) (bool, error) {
	query := `
		SELECT COUNT(1) FROM channel_users
		WHERE channel_id = ? AND user_id = ?
	`
	if excludeBanned {
		query += ` AND is_banned = 0`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, channelID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return count > 0, nil
}

// IsBanned reports whether the user has a banned membership row.
func (s *SQLiteStore) IsBanned(ctx context.Context, channelID, userID int64) (bool, error) {
	query := `
		SELECT COUNT(1) FROM channel_users
		WHERE channel_id = ? AND user_id = ? AND is_banned = 1
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, channelID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("query ban flag: %w", err)
	}
	return count > 0, nil
}

// MembersOf lists users attached to a channel.
func (s *SQLiteStore) MembersOf(ctx context.Context, channelID int64, excludeBanned bool) ([]*store.User, error) {
	query := `
		SELECT u.id, u.nickname, u.password_hash, u.status, u.created_at
		FROM users u
		JOIN channel_users cu ON cu.user_id = u.id
		WHERE cu.channel_id = ?
	`
	if excludeBanned {
		query += ` AND cu.is_banned = 0`
	}
	query += ` ORDER BY u.nickname`

	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// MembershipsOf lists channels the user is attached to.
func (s *SQLiteStore) MembershipsOf(ctx context.Context, userID int64, excludeBanned bool) ([]*store.Channel, error) {
	query := `
		SELECT c.id, c.name, c.is_private, c.admin_id, c.created_at
		FROM channels c
		JOIN channel_users cu ON cu.channel_id = c.id
		WHERE cu.user_id = ?
	`
	if excludeBanned {
		query += ` AND cu.is_banned = 0`
	}
	query += ` ORDER BY c.name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (s *SQLiteStore) scanChannel(row *sql.Row) (*store.Channel, error) {
	var ch store.Channel
	var adminID sql.NullInt64
	err := row.Scan(&ch.ID, &ch.Name, &ch.IsPrivate, &adminID, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	if adminID.Valid {
		ch.AdminID = &adminID.Int64
	}
	return &ch, nil
}

func scanChannels(rows *sql.Rows) ([]*store.Channel, error) {
	var channels []*store.Channel
	for rows.Next() {
		var ch store.Channel
		var adminID sql.NullInt64
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.IsPrivate, &adminID, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		if adminID.Valid {
			ch.AdminID = &adminID.Int64
		}
		channels = append(channels, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// ==== VoteStore implementation ====

// AddKickVote records a vote. The primary key makes duplicate votes from
// the same voter a no-op, which also covers two racing third votes.
func (s *SQLiteStore) AddKickVote(ctx context.Context, channelID, targetID, voterID int64) (bool, error) {
	query := `
		INSERT OR IGNORE INTO kick_votes (channel_id, target_id, voter_id)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, channelID, targetID, voterID)
	if err != nil {
		return false, fmt.Errorf("insert kick vote: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// HasKickVote reports whether the voter already voted for the target.
func (s *SQLiteStore) HasKickVote(ctx context.Context, channelID, targetID, voterID int64) (bool, error) {
	query := `
		SELECT COUNT(1) FROM kick_votes
		WHERE channel_id = ? AND target_id = ? AND voter_id = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, channelID, targetID, voterID).Scan(&count); err != nil {
		return false, fmt.Errorf("query kick vote: %w", err)
	}
	return count > 0, nil
}

// CountKickVotes returns the number of distinct voters against the target.
func (s *SQLiteStore) CountKickVotes(ctx context.Context, channelID, targetID int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT voter_id) FROM kick_votes
		WHERE channel_id = ? AND target_id = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, channelID, targetID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count kick votes: %w", err)
	}
	return count, nil
}

// ClearKickVotes deletes all votes against the target in the channel.
func (s *SQLiteStore) ClearKickVotes(ctx context.Context, channelID, targetID int64) error {
	query := `DELETE FROM kick_votes WHERE channel_id = ? AND target_id = ?`
	if _, err := s.db.ExecContext(ctx, query, channelID, targetID); err != nil {
		return fmt.Errorf("clear kick votes: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (channel_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.ChannelID, msg.UserID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages retrieves messages from a channel, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, channel_id, user_id, body, created_at
		FROM messages
		WHERE channel_id = ?
	`
	args := []any{channelID}

	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}

	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
