package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"modmail/internal/shared/goroutine"
	"modmail/internal/shared/logger"
)

// Gateway opcodes.
const (
	opDispatch            = 0
	opHeartbeat           = 1
	opIdentify            = 2
	opReconnect           = 7
	opRequestGuildMembers = 8
	opInvalidSession      = 9
	opHello               = 10
	opHeartbeatACK        = 11
)

const (
	gatewayWriteWait      = 10 * time.Second
	gatewayHandshakeWait  = 30 * time.Second
	defaultGatewayIntents = IntentGuilds | IntentGuildMembers | IntentGuildModeration | IntentDirectMessages
)

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Gateway is a single websocket session against the platform's event stream.
// Decoded dispatches are delivered through Next; a read or protocol failure
// is terminal for the session.
type Gateway struct {
	conn    *websocket.Conn
	log     logger.Interface
	writeMu sync.Mutex

	events chan *Event
	errs   chan error

	seq       atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// ConnectGateway dials the gateway, completes the hello/identify handshake,
// and starts the heartbeat and read loops.
func ConnectGateway(ctx context.Context, gatewayURL, token string, log logger.Interface) (*Gateway, error) {
	dialCtx, cancel := context.WithTimeout(ctx, gatewayHandshakeWait)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	g := &Gateway{
		conn:   conn,
		log:    log,
		events: make(chan *Event, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	interval, err := g.readHello()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := g.identify(token); err != nil {
		conn.Close()
		return nil, fmt.Errorf("identify: %w", err)
	}

	goroutine.SafeGo(log, "gateway.heartbeat", func() { g.heartbeatLoop(interval) })
	goroutine.SafeGo(log, "gateway.read", g.readLoop)

	return g, nil
}

func (g *Gateway) readHello() (time.Duration, error) {
	g.conn.SetReadDeadline(time.Now().Add(gatewayHandshakeWait))
	defer g.conn.SetReadDeadline(time.Time{})

	var payload gatewayPayload
	if err := g.conn.ReadJSON(&payload); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if payload.Op != opHello {
		return 0, fmt.Errorf("expected hello opcode, got %d", payload.Op)
	}

	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(payload.D, &hello); err != nil {
		return 0, fmt.Errorf("decode hello: %w", err)
	}
	if hello.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("invalid heartbeat interval %d", hello.HeartbeatInterval)
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

func (g *Gateway) identify(token string) error {
	identify := map[string]any{
		"token":   token,
		"intents": defaultGatewayIntents,
		"properties": map[string]string{
			"os":      runtime.GOOS,
			"browser": "modmail",
			"device":  "modmail",
		},
	}
	return g.send(opIdentify, identify)
}

func (g *Gateway) send(op int, d any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}
	payload := gatewayPayload{Op: op, D: data}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.conn.SetWriteDeadline(time.Now().Add(gatewayWriteWait))
	return g.conn.WriteJSON(payload)
}

func (g *Gateway) heartbeatLoop(interval time.Duration) {
	// First beat after a random fraction of the interval, per the protocol.
	first := time.Duration(rand.Int63n(int64(interval)))
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-timer.C:
		}

		if err := g.sendHeartbeat(); err != nil {
			g.fail(fmt.Errorf("send heartbeat: %w", err))
			return
		}
		timer.Reset(interval)
	}
}

func (g *Gateway) sendHeartbeat() error {
	seq := g.seq.Load()
	if seq == 0 {
		return g.send(opHeartbeat, nil)
	}
	return g.send(opHeartbeat, seq)
}

func (g *Gateway) readLoop() {
	for {
		var payload gatewayPayload
		if err := g.conn.ReadJSON(&payload); err != nil {
			select {
			case <-g.done:
				return
			default:
			}
			g.fail(fmt.Errorf("read gateway frame: %w", err))
			return
		}

		if payload.S != nil {
			g.seq.Store(*payload.S)
		}

		switch payload.Op {
		case opDispatch:
			ev, err := DecodeEvent(payload.T, payload.D)
			if err != nil {
				g.log.Warnw("dropping undecodable gateway event", "event", payload.T, "error", err)
				continue
			}
			if ev == nil {
				continue
			}
			select {
			case g.events <- ev:
			case <-g.done:
				return
			}
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				g.fail(fmt.Errorf("send requested heartbeat: %w", err))
				return
			}
		case opReconnect:
			g.fail(fmt.Errorf("gateway requested reconnect"))
			return
		case opInvalidSession:
			g.fail(fmt.Errorf("gateway invalidated the session"))
			return
		case opHeartbeatACK:
		default:
			g.log.Debugw("ignoring gateway opcode", "op", payload.Op)
		}
	}
}

func (g *Gateway) fail(err error) {
	select {
	case g.errs <- err:
	default:
	}
}

// Next blocks until the next decoded event, a terminal stream error, or
// context cancellation.
func (g *Gateway) Next(ctx context.Context) (*Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-g.errs:
		return nil, err
	case ev := <-g.events:
		return ev, nil
	}
}

// RequestGuildMembers asks the gateway to stream the guild's full member
// list as GUILD_MEMBERS_CHUNK events.
func (g *Gateway) RequestGuildMembers(guildID Snowflake) error {
	req := map[string]any{
		"guild_id": guildID,
		"query":    "",
		"limit":    0,
	}
	return g.send(opRequestGuildMembers, req)
}

// Close terminates the session. Safe to call more than once.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)

		g.writeMu.Lock()
		g.conn.SetWriteDeadline(time.Now().Add(gatewayWriteWait))
		g.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		g.writeMu.Unlock()

		err = g.conn.Close()
	})
	return err
}
