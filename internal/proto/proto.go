package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeCommand        = "executeCommand"
	InboundTypeGeneralCommand = "executeGeneralCommand"
	InboundTypeGetUsers       = "getUsers"
	InboundTypeTyping         = "typing"
	InboundTypeDraftUpdate    = "draftUpdate"
	InboundTypeChangeStatus   = "changeStatus"
	InboundTypeAdminCheck     = "adminCheck"
	InboundTypeFetchChannels  = "fetchChannels"
	InboundTypeMessage        = "addMessage"
	InboundTypeLoadMessages   = "loadMessages"
)

// CommandData carries a slash command. Channel is set for commands issued
// from inside a channel and empty for general commands.
type CommandData struct {
	Channel string `json:"channel,omitempty"`
	Command string `json:"command"`
	Name    string `json:"name,omitempty"`
	Flag    string `json:"flag,omitempty"`
}

// ChannelRefData names a channel in a request.
type ChannelRefData struct {
	Channel string `json:"channel"`
}

// DraftData carries an ephemeral draft update.
type DraftData struct {
	Channel string `json:"channel"`
	Draft   string `json:"draft"`
}

// StatusData carries a presence status change request.
type StatusData struct {
	Status string `json:"status"`
}

// MessageData carries a new chat message.
type MessageData struct {
	Channel string `json:"channel"`
	Body    string `json:"body"`
}

// LoadMessagesData requests a page of channel history.
type LoadMessagesData struct {
	Channel  string `json:"channel"`
	Limit    int    `json:"limit,omitempty"`
	BeforeID *int64 `json:"beforeId,omitempty"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// UserPayload describes a user in presence events.
type UserPayload struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Status   string `json:"status"`
}

// ChannelPayload describes a channel in list refreshes.
type ChannelPayload struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

// ChannelListPayload is a full channel list refresh. NewChannel flags a
// just-invited channel so the client can surface it first.
type ChannelListPayload struct {
	Channels   []ChannelPayload `json:"channels"`
	NewChannel string           `json:"newChannelName,omitempty"`
}

// JoinChannelPayload confirms a join or create.
type JoinChannelPayload struct {
	ChannelID   int64  `json:"channelId"`
	ChannelName string `json:"channelName"`
	IsPrivate   bool   `json:"isPrivate"`
	UserID      int64  `json:"userId"`
}

// UserJoinedPayload notifies channel members about a new member.
type UserJoinedPayload struct {
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Nickname  string `json:"nickname"`
}

// ChannelRefPayload names a channel in an outbound event.
type ChannelRefPayload struct {
	ChannelName string `json:"channelName"`
}

// ChannelUsersPayload is a channel member roster.
type ChannelUsersPayload struct {
	ChannelName string   `json:"channelName"`
	Users       []string `json:"users"`
}

// TypingPayload is an ephemeral typing notification.
type TypingPayload struct {
	ChannelName string `json:"channelName"`
	User        string `json:"user"`
}

// DraftPayload is an ephemeral draft broadcast.
type DraftPayload struct {
	ChannelName string `json:"channelName"`
	User        string `json:"user"`
	Draft       string `json:"draft"`
}

// MessagePayload is a chat message delivered to channel members.
type MessagePayload struct {
	ID          int64  `json:"id"`
	ChannelName string `json:"channelName"`
	From        string `json:"from"`
	Body        string `json:"body"`
	CreatedAt   int64  `json:"createdAt"`
}

// HistoryPayload is a page of channel history, newest first.
type HistoryPayload struct {
	ChannelName string           `json:"channelName"`
	Messages    []MessagePayload `json:"messages"`
}
