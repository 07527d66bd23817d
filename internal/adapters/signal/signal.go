package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Context keys set by the HTTP middleware.
const (
	CtxUserID  = "user_id"
	CtxGuestID = "guest_id"
)

type Options struct {
	ReadLimit          int64
	PingPeriod         time.Duration
	WriteTimeout       time.Duration
	SendBuffer         int
	TrustPayloadUserID bool
	MessageLimit       int
	ReactionLimit      int
	LimitWindow        time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = 10
	}
	if o.ReactionLimit <= 0 {
		o.ReactionLimit = 20
	}
	if o.LimitWindow <= 0 {
		o.LimitWindow = 10 * time.Second
	}
	return o
}

type SignalWSController struct {
	Orch *orch.Orchestrator

	opts      Options
	messages  *RoomRateLimiter
	reactions *RoomRateLimiter
	handlers  map[string]handlerFunc
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	ctl := &SignalWSController{
		Orch:      o,
		opts:      opts,
		messages:  NewRoomRateLimiter(opts.MessageLimit, opts.LimitWindow),
		reactions: NewRoomRateLimiter(opts.ReactionLimit, opts.LimitWindow),
	}
	ctl.handlers = ctl.routes()
	return ctl
}

// client is the per-connection state the handlers see.
type client struct {
	sid     core.SessionID
	conn    *WsSignalConn
	userID  string
	guestID string
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	cl := &client{
		sid:     sid,
		userID:  c.GetString(CtxUserID),
		guestID: c.GetString(CtxGuestID),
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", cl.userID).Str("guest", cl.guestID).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	cl.conn = newWsSignalConn(ws, ctl.opts.SendBuffer)

	sess := core.NewMemberSession(sid, cl.conn, domain.Resolve(cl.userID, cl.guestID))
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, cl.conn)
	go ctl.readPump(ctx, cancel, cl)
}
