// Quizbox trivia game
//
// Players create or join a room by short code, the host starts the match,
// and six questions are broadcast with a five-second countdown and a
// fifteen-second answer window each. Correct answers score by arrival
// order (100/80/60/40); a final leaderboard ends the match.
//
// Features:
// - Single WebSocket endpoint at /trivia/ws; rooms are addressed in-band
// - Random 6-char room codes via crypto/rand, with server-side collision check
// - Host-only start, with host succession by join order on departure
// - Question catalog embedded at build time, replaceable via --questions
// - Per-question countdown ticker plus an independent fail-safe deadline
// - Rooms are deleted the instant they empty; idle rooms are reaped
// - In-browser QR link sharing per room, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client wraps one websocket connection. playerID is only touched from
// the connection's own readPump goroutine. mu guards the send channel's
// lifecycle: messages are queued from room timer goroutines as well as
// readPumps, so queueing after close must be a no-op, not a panic.
type Client struct {
	conn     *websocket.Conn
	playerID string

	mu     sync.Mutex
	send   chan any
	closed bool
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan any, 32),
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// trySend queues a message without blocking, reporting whether it was
// accepted. False means the buffer is full or the connection is gone.
func (c *Client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// reply queues a message for this connection only, dropping it if the
// consumer cannot keep up.
func (c *Client) reply(msg any) {
	_ = c.trySend(msg)
}

func (c *Client) replyError(message string) {
	c.reply(ErrorMessage{Type: "error", Message: message})
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// Registry owns the active rooms and the connection-to-player mapping.
// Each Room serializes its own mutations; the registry mutex only covers
// the maps (lock order: registry before room, never the reverse).
type Registry struct {
	cfg     *Config
	catalog *Catalog

	mu      sync.Mutex
	rooms   map[string]*Room
	players map[string]*Player
}

func newRegistry(cfg *Config, catalog *Catalog) *Registry {
	return &Registry{
		cfg:     cfg,
		catalog: catalog,
		rooms:   make(map[string]*Room),
		players: make(map[string]*Player),
	}
}

// Counts reports active rooms and connected players, for diagnostics.
func (reg *Registry) Counts() (rooms int, players int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms), len(reg.players)
}

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomIDLocked generates a crypto-random room code and ensures it
// doesn't collide with an existing room.
func (reg *Registry) newRoomIDLocked() string {
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = roomIDAlphabet[int(buf[i])%len(roomIDAlphabet)]
		}
		id := string(out)

		if _, exists := reg.rooms[id]; !exists {
			return id
		}
	}
}

func (reg *Registry) room(roomID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[roomID]
}

// findRoomByPlayer scans active rooms for membership. Used by the
// ready-toggle, answer, and disconnect flows, which carry no room ID.
func (reg *Registry) findRoomByPlayer(playerID string) *Room {
	if playerID == "" {
		return nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		if room.hasPlayer(playerID) {
			return room
		}
	}
	return nil
}

// createRoom registers a fresh room with the requester as host and sole
// member.
func (reg *Registry) createRoom(c *Client, playerName string) {
	player := &Player{
		id:     uuid.NewString(),
		name:   playerName,
		client: c,
	}

	reg.mu.Lock()
	roomID := reg.newRoomIDLocked()
	room := newRoom(reg.cfg, roomID, player)
	reg.rooms[roomID] = room
	reg.players[player.id] = player
	rooms, players := len(reg.rooms), len(reg.players)
	reg.mu.Unlock()

	c.playerID = player.id

	logf(reg.cfg, "GAMES: Player %q created room %s (rooms: %d, players: %d)",
		playerName, roomID, rooms, players)

	c.reply(RoomCreatedMessage{
		Type:     "roomCreated",
		RoomID:   roomID,
		PlayerID: player.id,
		Players:  room.snapshot(),
	})
}

func (reg *Registry) joinRoom(c *Client, roomID, playerName string) {
	room := reg.room(roomID)
	if room == nil {
		c.replyError("room not found")
		return
	}

	player := &Player{
		id:     uuid.NewString(),
		name:   playerName,
		client: c,
	}

	if err := room.addPlayer(player); err != nil {
		c.replyError(err.Error())
		return
	}

	reg.mu.Lock()
	reg.players[player.id] = player
	reg.mu.Unlock()

	c.playerID = player.id

	logf(reg.cfg, "GAMES: Player %q joined room %s", playerName, roomID)

	c.reply(JoinedRoomMessage{
		Type:     "joinedRoom",
		RoomID:   roomID,
		PlayerID: player.id,
		Players:  room.snapshot(),
	})
}

// leave removes a player from the registry and their room, deleting the
// room if it empties. Safe to call for unknown IDs.
func (reg *Registry) leave(playerID string) {
	if playerID == "" {
		return
	}

	reg.mu.Lock()
	_, known := reg.players[playerID]
	delete(reg.players, playerID)

	var room *Room
	for _, candidate := range reg.rooms {
		if candidate.hasPlayer(playerID) {
			room = candidate
			break
		}
	}
	reg.mu.Unlock()

	if !known || room == nil {
		return
	}

	removed, empty := room.removePlayer(playerID)
	if removed && empty {
		reg.mu.Lock()
		delete(reg.rooms, room.id)
		reg.mu.Unlock()

		logf(reg.cfg, "GAMES: Room %s emptied and was deleted", room.id)
	}
}

// disconnect reconciles an abruptly closed connection.
func (reg *Registry) disconnect(c *Client) {
	reg.leave(c.playerID)
	c.playerID = ""
}

// dispatch routes one decoded inbound message. Protocol and precondition
// failures are replied to the requester; expected benign races (duplicate
// answers, stale player IDs) are silently dropped.
func (reg *Registry) dispatch(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "createRoom":
		if msg.PlayerName == "" {
			c.replyError("playerName is required")
			return
		}
		if c.playerID != "" {
			c.replyError("this connection is already in a room")
			return
		}
		reg.createRoom(c, msg.PlayerName)

	case "joinRoom":
		if msg.PlayerName == "" || msg.RoomID == "" {
			c.replyError("roomId and playerName are required")
			return
		}
		if c.playerID != "" {
			c.replyError("this connection is already in a room")
			return
		}
		reg.joinRoom(c, strings.ToUpper(msg.RoomID), msg.PlayerName)

	case "leaveRoom":
		reg.leave(msg.PlayerID)
		if c.playerID == msg.PlayerID {
			c.playerID = ""
		}

	case "toggleReady":
		if room := reg.findRoomByPlayer(msg.PlayerID); room != nil {
			room.toggleReady(msg.PlayerID)
		}

	case "startGame":
		room := reg.room(msg.RoomID)
		if room == nil {
			c.replyError("room not found")
			return
		}
		if err := room.start(msg.PlayerID, msg.Questions, msg.Categories, reg.catalog); err != nil {
			c.replyError(err.Error())
			return
		}
		logf(reg.cfg, "GAMES: Room %s started a match", room.id)

	case "selectAnswer":
		if msg.AnswerIndex == nil {
			c.replyError("answerIndex is required")
			return
		}
		room := reg.room(msg.RoomID)
		if room == nil {
			room = reg.findRoomByPlayer(msg.PlayerID)
		}
		if room == nil {
			return
		}
		room.submitAnswer(msg.PlayerID, *msg.AnswerIndex, msg.TimeLeft)

	default:
		c.replyError(fmt.Sprintf("unrecognized message type: %q", msg.Type))
	}
}

func (reg *Registry) readPump(c *Client) {
	defer func() {
		reg.disconnect(c)
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError("malformed message payload")
			continue
		}

		reg.dispatch(c, msg)
	}
}

func serveTriviaWS(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		logf(cfg, "GAMES: New connection from %s", realIP(r))

		client := newClient(conn)
		go client.writePump()
		reg.readPump(client)
	}
}

// statsLoop periodically logs room and player counts.
func (reg *Registry) statsLoop(done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rooms, players := reg.Counts()
			logf(reg.cfg, "GAMES: Stats - active rooms: %d, connected players: %d", rooms, players)
		}
	}
}

// reaperLoop periodically ends rooms that have been idle longer than the
// configured room timeout.
func (reg *Registry) reaperLoop(done <-chan struct{}) {
	if reg.cfg.roomTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(reg.cfg.roomTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-reg.cfg.roomTimeout)

			reg.mu.Lock()
			stale := make([]*Room, 0)
			for id, room := range reg.rooms {
				if room.idle(cutoff) {
					delete(reg.rooms, id)
					stale = append(stale, room)
				}
			}
			reg.mu.Unlock()

			for _, room := range stale {
				members := room.close()

				reg.mu.Lock()
				for _, id := range members {
					delete(reg.players, id)
				}
				reg.mu.Unlock()

				logf(reg.cfg, "GAMES: Reaped idle room %s (%d players)", room.id, len(members))
			}
		}
	}
}

// roomQRHandler generates a PNG QR code linking straight into a room.
func roomQRHandler(cfg *Config, path string, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := strings.ToUpper(ps.ByName("roomid"))
		if reg.room(roomID) == nil {
			http.Error(w, "no such room", http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerTriviaGame sets up routes so that:
//   - $path            → HTML client
//   - $path/ws         → shared WebSocket endpoint
//   - $path/qr/:roomid → PNG QR code linking into a room
func registerTriviaGame(cfg *Config, path string, mux *httprouter.Router, reg *Registry, done <-chan struct{}) {
	mux.GET(cfg.prefix+path, serveTriviaPage(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveTriviaWS(cfg, reg))

	mux.GET(cfg.prefix+path+"/qr/:roomid", roomQRHandler(cfg, path, reg))

	go reg.statsLoop(done)
	go reg.reaperLoop(done)
}
