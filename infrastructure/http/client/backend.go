package client

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/auth"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
	"messengy/infrastructure/http/protocol"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// Backend is a chat backend reached over HTTP. Each connection holds one websocket.
type Backend struct {
	log        *slog.Logger
	requester  requester
	dialer     *websocket.Dialer
	apiKey     string
	bufferSize int
}

func NewBackend(log *slog.Logger, addr, apiKey string, bufferSize int) (*Backend, error) {
	r, err := newRequester(addr, http.Header{auth.HeaderAPIKey: []string{apiKey}})
	if err != nil {
		return nil, err
	}
	return &Backend{
		log:        log,
		requester:  r,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		apiKey:     apiKey,
		bufferSize: max(bufferSize, 1),
	}, nil
}

func (b *Backend) eventsURL(credential domain.Credential) string {
	u := *b.requester.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += protocol.RouteEvents
	u.RawQuery = url.Values{"token": []string{credential.String()}}.Encode()
	return u.String()
}

// Connect opens the event stream and waits for the server acknowledgement.
func (b *Backend) Connect(ctx context.Context, identity domain.Identity, credential domain.Credential) (contract.IConnection, error) {
	ws, resp, err := b.dialer.DialContext(ctx, b.eventsURL(credential), http.Header{auth.HeaderAPIKey: []string{b.apiKey}})
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(http.MethodGet, protocol.RouteEvents, resp)
		}
		return nil, err
	}

	var first domain.Event
	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := ws.ReadJSON(&first); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("reading connection acknowledgement: %w", err)
	}
	if first.Type != domain.EventConnectionOK || first.UserID != identity.ID {
		_ = ws.Close()
		return nil, fmt.Errorf("%w: unexpected handshake %s for %s", errors.ErrAuth, first.Type, first.UserID)
	}
	_ = ws.SetReadDeadline(time.Time{})

	conn := &Connection{
		log:        b.log,
		requester:  b.requester,
		credential: credential,
		ws:         ws,
		events:     make(chan domain.Event, b.bufferSize),
		done:       make(chan struct{}),
	}
	go conn.read()
	return conn, nil
}

// Connection is one live connection to the chat server.
type Connection struct {
	log        *slog.Logger
	requester  requester
	credential domain.Credential
	ws         *websocket.Conn
	events     chan domain.Event
	done       chan struct{}
	closeOnce  sync.Once
}

// read forwards server events until the socket fails, then closes Events.
func (c *Connection) read() {
	defer close(c.done)
	defer close(c.events)
	for {
		var evt domain.Event
		if err := c.ws.ReadJSON(&evt); err != nil {
			c.log.Debug("Event stream ended", "error", err)
			return
		}
		select {
		case c.events <- evt:
		default:
			c.log.Warn("Event buffer full, dropping event", "event", evt.Type, "channel_id", evt.ChannelID)
		}
	}
}

func (c *Connection) QueryChannels(ctx context.Context, filter domain.ChannelFilter, sort domain.ChannelSort,
	opts domain.QueryOptions) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := c.requester.do(ctx, http.MethodPost, protocol.RouteQueryChannels, c.credential.String(),
		protocol.QueryChannelsRequest{Filter: filter, Sort: sort, Options: opts}, &channels)
	return channels, err
}

func (c *Connection) CreateChannel(ctx context.Context, channelType string, members []string,
	metadata domain.ChannelMetadata) (domain.Channel, error) {
	var channel domain.Channel
	err := c.requester.do(ctx, http.MethodPost, protocol.RouteChannels, c.credential.String(),
		protocol.CreateChannelRequest{Type: channelType, Members: members, Metadata: metadata}, &channel)
	return channel, err
}

func (c *Connection) SendMessage(ctx context.Context, channelID, text string) (domain.Message, error) {
	var message domain.Message
	err := c.requester.do(ctx, http.MethodPost, protocol.RouteMessages(url.PathEscape(channelID)), c.credential.String(),
		protocol.SendMessageRequest{Text: text}, &message)
	return message, err
}

func (c *Connection) MarkRead(ctx context.Context, channelID string) error {
	return c.requester.do(ctx, http.MethodPost, protocol.RouteRead(url.PathEscape(channelID)), c.credential.String(), nil, nil)
}

func (c *Connection) CountUnread(ctx context.Context) (int, error) {
	var resp protocol.UnreadResponse
	err := c.requester.do(ctx, http.MethodGet, protocol.RouteUnread, c.credential.String(), nil, &resp)
	return resp.TotalUnreadCount, err
}

func (c *Connection) QueryUsers(ctx context.Context, filter domain.UserFilter, sort domain.UserSort,
	opts domain.QueryOptions) ([]domain.User, error) {
	var users []domain.User
	err := c.requester.do(ctx, http.MethodPost, protocol.RouteQueryUsers, c.credential.String(),
		protocol.QueryUsersRequest{Filter: filter, Sort: sort, Options: opts}, &users)
	return users, err
}

func (c *Connection) Events() <-chan domain.Event {
	return c.events
}

// Close sends a close frame and waits for the reader to stop, at most until ctx ends.
func (c *Connection) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
