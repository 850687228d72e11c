package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a frame to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 8 * 1024            // Largest client frame accepted.
	sendBuffer     = 64                  // Outbound frames queued before the client counts as slow.
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// non-browser clients send no Origin; browsers must come from the same host
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Client frames.
const (
	frameSelect  = "select"
	frameSend    = "send"
	frameClear   = "clear"
	frameSignOut = "signout"
)

type clientFrame struct {
	Type      string `json:"type"`
	ContactID string `json:"contact_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

type stateFrame struct {
	Type    string       `json:"type"`
	Status  string       `json:"status"`
	Contact *chatv1.User `json:"contact,omitempty"`
	RoomID  string       `json:"room_id,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type snapshotFrame struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id"`
	Messages []*chatv1.Message `json:"messages"`
}

type sentFrame struct {
	Type    string          `json:"type"`
	Message *chatv1.Message `json:"message"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func newErrorFrame(err error) errorFrame {
	return errorFrame{Type: "error", Kind: apperr.KindOf(err).String(), Error: apperr.Message(err)}
}

// routes builds the HTTP side of the API.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/ws", s.serveWs)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.log.Warn("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// wsClient is a middleman between the websocket connection and the view.
type wsClient struct {
	conn *websocket.Conn
	// Buffered channel of outbound frames.
	send chan []byte
	// done is closed to make the write pump flush and hang up.
	done      chan struct{}
	closeOnce sync.Once

	lastStatus conversation.Status
	log        func(msg string, args ...any)
}

// shutdown asks the write pump to flush queued frames and close.
func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue queues a frame without blocking. A client whose buffer is full
// is disconnected.
func (c *wsClient) enqueue(frame any) {
	b, err := json.Marshal(frame)
	if err != nil {
		c.log("marshal frame failed", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.log("slow websocket client, disconnecting")
		c.shutdown()
	}
}

// onState translates view changes into frames. It runs with the view locked.
func (c *wsClient) onState(st conversation.State) {
	if st.Status != c.lastStatus || st.Status != conversation.RoomReady {
		f := stateFrame{
			Type:    "state",
			Status:  st.Status.String(),
			Contact: publicUser(st.Contact),
			RoomID:  st.RoomID,
		}
		if st.Err != nil {
			f.Kind = apperr.KindOf(st.Err).String()
			f.Error = apperr.Message(st.Err)
		}
		c.enqueue(f)
		c.lastStatus = st.Status
	}
	if st.Status == conversation.RoomReady && st.Loaded {
		c.enqueue(snapshotFrame{Type: "snapshot", RoomID: st.RoomID, Messages: toMessages(st.Messages)})
	}
}

// writePump pumps frames from the send queue to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	write := func(b []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(websocket.TextMessage, b)
	}

	for {
		select {
		case b := <-c.send:
			if err := write(b); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// flush what is already queued, then say goodbye
		flush:
			for {
				select {
				case b := <-c.send:
					if err := write(b); err != nil {
						return
					}
				default:
					break flush
				}
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// serveWs upgrades an authenticated request to a websocket bound to a new
// session and conversation view. The token comes from the Authorization
// header or the "token" query parameter.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	creds, err := s.identity.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	log := s.log.With("user_id", creds.Principal.ID, "request_id", chimw.GetReqID(r.Context()))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  log.Warn,
	}
	sess := identity.NewSession(creds)
	view := conversation.NewView(s.conversation, creds.Principal, client.onState)

	// signing out anywhere on this session clears the view and hangs up
	unsubscribe := sess.Subscribe(func(p *identity.Principal) {
		if p == nil {
			view.Clear()
			client.shutdown()
		}
	})
	defer func() {
		unsubscribe()
		view.Clear()
		client.shutdown()
	}()

	go client.writePump()
	go s.watchSession(ctx, sess)
	client.enqueue(stateFrame{Type: "state", Status: conversation.Unselected.String()})

	s.readPump(identity.WithSession(ctx, sess), client, view, log.Debug)
}

// readPump reads client frames until the connection closes and applies
// them to the view. Frames are handled one at a time.
func (s *Server) readPump(ctx context.Context, c *wsClient, view *conversation.View, debug func(string, ...any)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f clientFrame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug("websocket read failed", "error", err)
			}
			return
		}
		if err := s.handleFrame(ctx, c, view, f); err != nil {
			c.enqueue(newErrorFrame(err))
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, c *wsClient, view *conversation.View, f clientFrame) error {
	sess, _ := identity.SessionFromContext(ctx)
	// a token revoked by another connection ends this session too
	if err := s.identity.Check(ctx, sess); err != nil {
		return err
	}
	p := sess.Principal()
	if p == nil {
		return apperr.E("api.ws", apperr.Auth, "session ended", nil)
	}

	switch f.Type {
	case frameSelect:
		contact, err := s.directory.ResolveUser(ctx, f.ContactID)
		if err != nil {
			return err
		}
		// failures surface through the view state
		_ = view.Select(ctx, contact)
		return nil

	case frameSend:
		if s.sendLimiter != nil && !s.sendLimiter.Allow("user:"+p.ID) {
			return apperr.E("api.ws", apperr.RateLimited, "rate limit exceeded", nil)
		}
		msg, err := view.Send(ctx, f.Text)
		if err != nil {
			return err
		}
		c.enqueue(sentFrame{Type: "sent", Message: toMessage(msg)})
		return nil

	case frameClear:
		view.Clear()
		return nil

	case frameSignOut:
		return s.identity.SignOut(ctx, sess)

	default:
		return apperr.Invalid("api.ws", "unknown frame type")
	}
}
