package core

// Wire event names emitted to clients.
const (
	EventUserOnline  = "user:online"
	EventUserOffline = "user:offline"
	EventUserList    = "user:list"
	EventUserTyping  = "user:typing"
	EventUserDraft   = "user:draftUpdate"
	EventUserIsAdmin = "user:isAdmin"

	// EventUserChannels is a full channel list refresh for one user.
	EventUserChannels = "user:channels"

	EventJoinChannel = "join_channel"
	EventUserJoined  = "user_joined"

	// EventChannelCancel tells one user they are no longer in a channel.
	EventChannelCancel = "channel:cancel"
	// EventChannelQuit tells one user a channel ceased to exist.
	EventChannelQuit = "channel:quit"

	EventChannelUsers = "channel:users"

	EventMessage     = "message"
	EventMessageList = "message:list"
	EventHistory     = "message:history"

	EventError   = "error"
	EventInfo    = "info"
	EventSuccess = "success"
)

// Event is a named notification delivered to clients. Data is the wire
// payload, marshaled as-is by the transport.
type Event struct {
	Name string
	Data any
}

// NewEvent builds an event.
func NewEvent(name string, data any) *Event {
	return &Event{Name: name, Data: data}
}

// StatusEventName maps a presence status to its broadcast event name.
// An active user is announced as online; any other status is announced
// under its own name (for example "user:dnd").
func StatusEventName(status string) string {
	if status == "active" {
		return EventUserOnline
	}
	return "user:" + status
}
