// Package signaling is the client side of the relay protocol.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	ReadLimit        int64
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		ReadLimit:        64 * 1024,
	}
}

// Client manages the WebSocket connection to the relay for one room.
// There is no automatic reconnection.
type Client struct {
	serverURL string
	opts      Options

	mu        sync.RWMutex
	conn      *websocket.Conn
	roomID    string
	connected bool
	handler   Handler

	outgoing  chan []byte
	closing   chan struct{}
	done      chan struct{}
	writerOut chan struct{}

	closeOnce sync.Once
	downOnce  sync.Once
}

func NewClient(serverURL string, opts Options) *Client {
	return &Client{
		serverURL: serverURL,
		opts:      opts,
		outgoing:  make(chan []byte, 64),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		writerOut: make(chan struct{}),
	}
}

// Connect dials the relay and sends join-room right away.
func (c *Client) Connect(ctx context.Context, roomID, username string, h Handler) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if h == nil {
		h = NopHandler{}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(c.opts.ReadLimit)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.roomID = roomID
	c.handler = h
	c.connected = true
	c.mu.Unlock()

	log.Info().Str("module", "signaling").Str("url", u.Redacted()).Str("room", roomID).Msg("connected")

	go c.writePump()
	go c.readPump()

	h.OnConnected()
	return c.send(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: roomID, Username: username})
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendSignal forwards a negotiation signal. An empty target reaches
// every other member of the room.
func (c *Client) SendSignal(target domain.ParticipantID, sig protocol.Signal) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return c.send(protocol.TypeSignal, protocol.SignalRequest{
		RoomID:         c.room(),
		TargetSocketID: target,
		Signal:         raw,
	})
}

func (c *Client) SendChat(text string) error {
	return c.send(protocol.TypeChat, protocol.ChatRequest{RoomID: c.room(), Message: text})
}

func (c *Client) room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) send(typ string, payload any) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrNotConnected
	case <-c.closing:
		return ErrNotConnected
	}
}

// Close sends leave-room and a close frame, then drops the connection.
// Safe to call from a Handler callback.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if !c.Connected() {
			return
		}
		if sendErr := c.send(protocol.TypeLeaveRoom, nil); sendErr != nil {
			log.Debug().Err(sendErr).Str("module", "signaling").Msg("leave-room not sent")
		}
		close(c.closing)

		select {
		case <-c.writerOut:
		case <-time.After(c.opts.WriteWait):
			err = errors.New("signaling: close timed out")
		}
		c.shutdown(nil)
	})
	return err
}

// shutdown marks the client disconnected and reports it once.
func (c *Client) shutdown(cause error) {
	c.downOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		conn, h := c.conn, c.handler
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			_ = conn.Close()
		}
		if cause != nil {
			log.Warn().Err(cause).Str("module", "signaling").Msg("disconnected")
		} else {
			log.Info().Str("module", "signaling").Msg("disconnected")
		}
		if h != nil {
			h.OnDisconnected(cause)
		}
	})
}

func (c *Client) readPump() {
	c.mu.RLock()
	conn, h := c.conn, c.handler
	c.mu.RUnlock()

	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
				c.shutdown(nil)
			default:
				werr := fmt.Errorf("signaling read: %w", err)
				h.OnError(werr)
				c.shutdown(werr)
			}
			return
		}
		c.dispatch(h, data)
	}
}

func (c *Client) dispatch(h Handler, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signaling").Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.TypeRoomJoined:
		var p protocol.RoomJoined
		if decode(env, &p) {
			h.OnRoomJoined(p)
		}
	case protocol.TypeUserJoined:
		var p protocol.UserEvent
		if decode(env, &p) {
			h.OnUserJoined(p)
		}
	case protocol.TypeUserLeft:
		var p protocol.UserEvent
		if decode(env, &p) {
			h.OnUserLeft(p)
		}
	case protocol.TypeSignal:
		var p protocol.SignalForward
		if decode(env, &p) {
			h.OnSignal(p)
		}
	case protocol.TypeChat:
		var p protocol.ChatMessage
		if decode(env, &p) {
			h.OnChat(p)
		}
	case protocol.TypeError:
		var p protocol.Error
		if decode(env, &p) {
			h.OnError(&RelayError{Message: p.Message})
		}
	default:
		log.Warn().Str("module", "signaling").Str("type", env.Type).Msg("unknown event")
	}
}

func decode(env protocol.Envelope, v any) bool {
	if err := env.DecodePayload(v); err != nil {
		log.Warn().Err(err).Str("module", "signaling").Str("type", env.Type).Msg("bad payload")
		return false
	}
	return true
}

func (c *Client) writePump() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerOut)
	}()

	write := func(typ int, data []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		return conn.WriteMessage(typ, data)
	}

	for {
		select {
		case frame := <-c.outgoing:
			if err := write(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signaling").Msg("write")
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closing:
			// Flush what is queued (leave-room at least) before the close frame.
			for {
				select {
				case frame := <-c.outgoing:
					if err := write(websocket.TextMessage, frame); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.done:
			return
		}
	}
}
