package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/auth"
	"github.com/seenup/seenup-server/internal/core"
	"github.com/seenup/seenup-server/internal/proto"
	"github.com/seenup/seenup-server/internal/store"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	authService *auth.Service
	presence    *core.Presence
	dispatcher  *core.Dispatcher
	channels    *core.Channels
	messages    *core.Messages
	hub         *core.Hub
	store       store.Store
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(
	authService *auth.Service,
	presence *core.Presence,
	dispatcher *core.Dispatcher,
	channels *core.Channels,
	messages *core.Messages,
	hub *core.Hub,
	st store.Store,
	logger *zerolog.Logger,
) stdhttp.Handler {
	return &WSHandler{
		authService: authService,
		presence:    presence,
		dispatcher:  dispatcher,
		channels:    channels,
		messages:    messages,
		hub:         hub,
		store:       st,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := core.NewClient(claims.UserID, claims.Nickname)
	if err := h.presence.Connect(ctx, client); err != nil {
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("register connection")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	defer h.presence.Disconnect(context.WithoutCancel(ctx), client)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate accepts the token from a query parameter (browsers cannot
// set headers on websocket upgrades) or a Bearer header.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.authService.ValidateToken(token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.handleInbound(ctx, client, inbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			outbound := proto.Outbound{Event: event.Name, Data: event.Data}
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInbound routes one decoded frame. Handler failures never close
// the connection; they come back to this client as error/info events.
func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) {
	switch inbound.Type {
	case proto.InboundTypeCommand:
		var cmd proto.CommandData
		if !h.decode(client, inbound.Data, &cmd) {
			return
		}
		h.dispatcher.Execute(ctx, client, cmd.Channel, cmd.Command, cmd.Name, cmd.Flag)

	case proto.InboundTypeGeneralCommand:
		var cmd proto.CommandData
		if !h.decode(client, inbound.Data, &cmd) {
			return
		}
		h.dispatcher.Execute(ctx, client, "", cmd.Command, cmd.Name, cmd.Flag)

	case proto.InboundTypeGetUsers:
		var ref proto.ChannelRefData
		if !h.decode(client, inbound.Data, &ref) {
			return
		}
		reply, err := h.channels.Members(ctx, ref.Channel)
		h.dispatcher.Deliver(client, reply, err)

	case proto.InboundTypeTyping:
		var ref proto.ChannelRefData
		if !h.decode(client, inbound.Data, &ref) {
			return
		}
		h.dispatcher.Typing(ctx, client, ref.Channel)

	case proto.InboundTypeDraftUpdate:
		var draft proto.DraftData
		if !h.decode(client, inbound.Data, &draft) {
			return
		}
		h.dispatcher.DraftUpdate(ctx, client, draft.Channel, draft.Draft)

	case proto.InboundTypeChangeStatus:
		var status proto.StatusData
		if !h.decode(client, inbound.Data, &status) {
			return
		}
		h.dispatcher.Deliver(client, nil, h.presence.ChangeStatus(ctx, client.UserID, status.Status))

	case proto.InboundTypeAdminCheck:
		var ref proto.ChannelRefData
		if !h.decode(client, inbound.Data, &ref) {
			return
		}
		user, err := h.store.GetUserByID(ctx, client.UserID)
		if err != nil {
			h.dispatcher.Deliver(client, nil, err)
			return
		}
		reply, err := h.channels.AdminCheck(ctx, user, ref.Channel)
		h.dispatcher.Deliver(client, reply, err)

	case proto.InboundTypeFetchChannels:
		h.hub.PushChannelList(ctx, client.UserID, "")

	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if !h.decode(client, inbound.Data, &msg) {
			return
		}
		user, err := h.store.GetUserByID(ctx, client.UserID)
		if err != nil {
			h.dispatcher.Deliver(client, nil, err)
			return
		}
		h.dispatcher.Deliver(client, nil, h.messages.Send(ctx, user, msg.Channel, msg.Body))

	case proto.InboundTypeLoadMessages:
		var load proto.LoadMessagesData
		if !h.decode(client, inbound.Data, &load) {
			return
		}
		user, err := h.store.GetUserByID(ctx, client.UserID)
		if err != nil {
			h.dispatcher.Deliver(client, nil, err)
			return
		}
		reply, err := h.messages.History(ctx, user, load.Channel, load.Limit, load.BeforeID)
		h.dispatcher.Deliver(client, reply, err)

	default:
		client.Send(core.NewEvent(core.EventError, "Unknown message type."))
	}
}

func (h *WSHandler) decode(client *core.Client, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("malformed ws frame")
		client.Send(core.NewEvent(core.EventError, "Malformed request."))
		return false
	}
	return true
}
