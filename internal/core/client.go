package core

import "github.com/seenup/seenup-server/internal/utils"

// Client is one websocket connection of an authenticated user. A user
// may hold several clients at once, one per open socket.
type Client struct {
	ID       string // connection ID, unique per socket
	UserID   int64
	Nickname string
	Events   chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(userID int64, nickname string) *Client {
	return &Client{
		ID:       utils.NewConnID(),
		UserID:   userID,
		Nickname: nickname,
		Events:   make(chan *Event, 32),
	}
}

// Send queues an event for delivery, dropping it if the client's buffer
// is full. Slow consumers resync on reconnect via the channel list refresh.
func (c *Client) Send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}
