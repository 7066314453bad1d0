package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/realtime"
	"github.com/gosuda/syncboard/internal/server/middleware"
	"github.com/gosuda/syncboard/internal/session"
)

const (
	defaultWriteTimeout = 10 * time.Second
	readLimit           = 64 << 10
)

// SessionResolver looks up the session a socket presents.
// *session.Resolver satisfies this interface.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*domain.Session, error)
}

type Options struct {
	WriteTimeout   time.Duration
	OriginPatterns []string
	Clock          clock.Clock
}

// Hub accepts WebSocket connections and bridges them to the registry. Each
// socket gets a reader goroutine for client frames and a writer loop that
// drains the connection's outbound queue.
type Hub struct {
	registry *realtime.Registry
	sessions SessionResolver
	opts     Options
}

func NewHub(registry *realtime.Registry, sessions SessionResolver, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Hub{registry: registry, sessions: sessions, opts: opts}
}

// Routes mounts the socket endpoints on r.
func (h *Hub) Routes(r chi.Router) {
	r.Get("/ws", h.ServeConnection)
	r.Get("/ws/boards/{boardID}", h.ServeConnection)
}

// ServeConnection upgrades the request and serves the socket until either
// side closes it or the registry prunes it.
//
// Query parameters: client_id (defaults to a fresh uuid), board_id (also
// taken from the path), username and session_id. A session that resolves
// overrides the supplied username.
func (h *Hub) ServeConnection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clientID := strings.TrimSpace(q.Get("client_id"))
	if clientID == "" {
		clientID = uuid.NewString()
	}
	boardID := strings.TrimSpace(chi.URLParam(r, "boardID"))
	if boardID == "" {
		boardID = strings.TrimSpace(q.Get("board_id"))
	}
	username := h.resolveUsername(r, strings.TrimSpace(q.Get("username")))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer ws.CloseNow()
	ws.SetReadLimit(readLimit)

	c, err := h.registry.Register(clientID, realtime.RegisterOptions{
		BoardID:  boardID,
		Username: username,
		Greeting: realtime.Connected(clientID, username, boardID),
	})
	if err != nil {
		_ = ws.Close(websocket.StatusPolicyViolation, "invalid client id")
		return
	}
	defer h.registry.Detach(c)

	logger := log.With().Str("client_id", clientID).Str("board_id", boardID).Logger()
	logger.Info().Str("username", username).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, c)
	}()

	h.writeLoop(ctx, ws, c)
	logger.Info().Msg("client disconnected")
}

func (h *Hub) resolveUsername(r *http.Request, supplied string) string {
	sessionID := r.URL.Query().Get("session_id")
	if id, ok := middleware.SessionIDFromContext(r.Context()); ok {
		sessionID = id
	}
	if sessionID == "" || h.sessions == nil {
		return session.ResolveAuthor(nil, supplied)
	}

	sess, err := h.sessions.Resolve(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("session lookup failed, using supplied username")
		}
		return session.ResolveAuthor(nil, supplied)
	}
	return session.ResolveAuthor(sess, supplied)
}

func (h *Hub) writeLoop(ctx context.Context, ws *websocket.Conn, c *realtime.Conn) {
	for {
		select {
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-c.Done():
			h.flush(ctx, ws, c)
			_ = ws.Close(websocket.StatusGoingAway, "connection closed by server")
			return
		case frame := <-c.Outbound():
			writeCtx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID()).Msg("websocket write")
				return
			}
		}
	}
}

// flush writes the frames still queued on a closed handle.
func (h *Hub) flush(ctx context.Context, ws *websocket.Conn, c *realtime.Conn) {
	for {
		select {
		case frame := <-c.Outbound():
			writeCtx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, c *realtime.Conn) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Str("client_id", c.ID()).Msg("websocket read")
			}
			return
		}
		c.Touch(h.opts.Clock.Now())
		if typ != websocket.MessageText {
			continue
		}

		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID()).Msg("malformed client frame")
			continue
		}
		h.handleFrame(c, f)
	}
}

func (h *Hub) handleFrame(c *realtime.Conn, f ClientFrame) {
	switch f.Type {
	case FrameSubscribe:
		boardID := strings.TrimSpace(f.BoardID)
		if err := h.registry.SubscribeConn(c, boardID); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID()).Msg("subscribe")
			return
		}
		log.Debug().Str("client_id", c.ID()).Str("board_id", boardID).Msg("client subscribed")
	case FramePing:
		if err := c.Send(realtime.Heartbeat(h.opts.Clock.Now().UTC())); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID()).Msg("answer ping")
		}
	case FrameIdentify:
		name, err := session.NormalizeUsername(f.Username)
		if err != nil {
			return
		}
		c.SetUsername(name)
		if err := c.Send(realtime.Connected(c.ID(), name, c.BoardID())); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID()).Msg("echo identify")
		}
	case FramePong:
	default:
		log.Debug().Str("client_id", c.ID()).Str("type", f.Type).Msg("unknown client frame")
	}
}
