package main

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

type gameState string

const (
	stateWaiting  gameState = "waiting"
	statePlaying  gameState = "playing"
	stateFinished gameState = "finished"
)

const (
	// Delay between gameStart and the first pre-question countdown.
	startDelay = 1 * time.Second
	// Grace period before finalizing once every member has answered.
	graceDelay = 2 * time.Second
	// Delay between questionEnd and the next question (or gameEnd).
	advanceDelay = 3 * time.Second
	// The fail-safe deadline fires this long after the answer window
	// should have expired, in case the per-second ticker stalled.
	failsafeSlack = 5 * time.Second
)

var (
	errNotHost            = errors.New("only the host can start the game")
	errNotEnoughPlayers   = errors.New("at least 2 players are required to start")
	errGameAlreadyStarted = errors.New("the game has already started")
	errGameInProgress     = errors.New("cannot join a game in progress")
)

// Player ties an identity to a connection. The client pointer is nilled
// once the connection is gone or evicted; all access happens under the
// owning room's mutex.
type Player struct {
	id     string
	name   string
	ready  bool
	client *Client
}

// deliver sends without blocking; a full buffer means the consumer is
// dead or hopelessly behind, so the connection is dropped.
func (p *Player) deliver(msg any) {
	if p.client == nil {
		return
	}

	if !p.client.trySend(msg) {
		p.client.close()
		p.client = nil
	}
}

// Answer records a single submission for the current question. The slice
// of answers is reset every question.
type Answer struct {
	playerID   string
	playerName string
	choice     int
	correct    bool
	timeLeft   int
	submitted  time.Time
	awarded    int
}

// Room owns all per-match state. Mutations take r.mu; timer callbacks
// re-enter through it and are validated against the sequence number they
// were scheduled under, so a cancelled or superseded timer is a no-op.
type Room struct {
	id  string
	cfg *Config

	mu           sync.Mutex
	state        gameState
	host         string
	players      []*Player // join order; head is next in host succession
	scores       map[string]int
	questions    []Question
	current      int
	answers      []Answer
	timeLeft     int
	questionOpen bool

	// seq is bumped whenever outstanding timers become invalid: question
	// finalized, game finished, room emptied or reaped.
	seq        int
	tickCancel context.CancelFunc
	failsafe   *time.Timer

	lastActive time.Time
}

func newRoom(cfg *Config, id string, host *Player) *Room {
	return &Room{
		id:         id,
		cfg:        cfg,
		state:      stateWaiting,
		host:       host.id,
		players:    []*Player{host},
		scores:     map[string]int{host.id: 0},
		lastActive: time.Now(),
	}
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

func (r *Room) idle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActive.Before(cutoff)
}

func (r *Room) hasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playerByIDLocked(playerID) != nil
}

func (r *Room) playerByIDLocked(playerID string) *Player {
	for _, p := range r.players {
		if p.id == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) playerInfosLocked() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, PlayerInfo{
			ID:     p.id,
			Name:   p.name,
			Ready:  p.ready,
			IsHost: p.id == r.host,
		})
	}
	return infos
}

func (r *Room) broadcastLocked(msg any) {
	for _, p := range r.players {
		p.deliver(msg)
	}
}

// snapshot returns the data needed for roomCreated/joinedRoom replies.
func (r *Room) snapshot() (players []PlayerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playerInfosLocked()
}

// addPlayer admits a player while the room is still waiting.
func (r *Room) addPlayer(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateWaiting {
		return errGameInProgress
	}

	r.players = append(r.players, p)
	r.scores[p.id] = 0
	r.lastActive = time.Now()

	r.broadcastLocked(PlayerJoinedMessage{
		Type:       "playerJoined",
		PlayerID:   p.id,
		PlayerName: p.name,
		Players:    r.playerInfosLocked(),
	})

	return nil
}

// toggleReady flips the ready flag and rebroadcasts membership. Ready
// state is informational; it does not gate game start. Unknown players
// are a benign race, not an error.
func (r *Room) toggleReady(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}

	p.ready = !p.ready
	r.lastActive = time.Now()

	r.broadcastLocked(PlayerUpdateMessage{
		Type:    "playerUpdate",
		Players: r.playerInfosLocked(),
	})
}

// removePlayer handles leave and disconnect. It reports whether the
// player was a member, and whether the room emptied out (the caller then
// deletes it from the registry; timers are already invalidated here, so
// nothing fires against a deleted room).
func (r *Room) removePlayer(playerID string) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.players, func(p *Player) bool {
		return p.id == playerID
	})
	if idx < 0 {
		return false, false
	}

	departed := r.players[idx]
	r.players = slices.Delete(r.players, idx, idx+1)
	delete(r.scores, playerID)
	r.lastActive = time.Now()

	if len(r.players) == 0 {
		r.seq++
		r.cancelTimersLocked()
		return true, true
	}

	// Promote the earliest-joined remaining member before broadcasting,
	// so membership snapshots carry a coherent host flag.
	wasHost := r.host == playerID
	if wasHost {
		r.host = r.players[0].id
	}

	r.broadcastLocked(PlayerLeftMessage{
		Type:       "playerLeft",
		PlayerID:   departed.id,
		PlayerName: departed.name,
		Players:    r.playerInfosLocked(),
	})

	if wasHost {
		r.broadcastLocked(NewHostMessage{Type: "newHost", HostID: r.host})
	}

	// A departure can complete the answer quorum for the live question.
	if r.state == statePlaying && r.questionOpen && len(r.answers) >= len(r.players) {
		seq := r.seq
		time.AfterFunc(graceDelay, func() { r.finalizeQuestion(seq) })
	}

	return true, false
}

// start transitions waiting → playing: selects the question set,
// broadcasts it, and schedules the first countdown.
func (r *Room) start(playerID string, custom []Question, categories []string, catalog *Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateWaiting {
		return errGameAlreadyStarted
	}
	if playerID != r.host {
		return errNotHost
	}
	if len(r.players) < 2 {
		return errNotEnoughPlayers
	}

	r.questions = catalog.Select(custom, categories, r.cfg.questionsPerGame)
	r.state = statePlaying
	r.current = 0
	r.answers = nil
	r.questionOpen = false
	r.lastActive = time.Now()
	r.seq++
	seq := r.seq

	r.broadcastLocked(GameStartMessage{Type: "gameStart", Questions: r.questions})

	time.AfterFunc(startDelay, func() { r.runCountdown(seq) })

	return nil
}

// runCountdown broadcasts decreasing integers at one-second intervals,
// then asks the current question. It aborts silently if the match moved
// on underneath it.
func (r *Room) runCountdown(seq int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for count := r.cfg.countdown; count >= 1; count-- {
		r.mu.Lock()
		if r.seq != seq || r.state != statePlaying {
			r.mu.Unlock()
			return
		}
		r.broadcastLocked(CountdownMessage{
			Type:           "countdown",
			Count:          count,
			QuestionNumber: r.current + 1,
			TotalQuestions: len(r.questions),
		})
		r.mu.Unlock()

		<-ticker.C
	}

	r.askQuestion(seq)
}

// askQuestion opens the answer window: emits the question, starts the
// per-second ticker, and arms the independent fail-safe deadline.
func (r *Room) askQuestion(seq int) {
	r.mu.Lock()
	if r.seq != seq || r.state != statePlaying || r.current >= len(r.questions) {
		r.mu.Unlock()
		return
	}

	r.answers = nil
	r.questionOpen = true
	r.timeLeft = int(r.cfg.questionTime / time.Second)

	r.broadcastLocked(NewQuestionMessage{
		Type:           "newQuestion",
		QuestionNumber: r.current + 1,
		TotalQuestions: len(r.questions),
		Question:       r.questions[r.current],
		TimeLeft:       r.timeLeft,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.tickCancel = cancel
	r.failsafe = time.AfterFunc(r.cfg.questionTime+failsafeSlack, func() {
		r.finalizeQuestion(seq)
	})
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.mu.Lock()
				if r.seq != seq || r.state != statePlaying {
					r.mu.Unlock()
					return
				}

				r.timeLeft--
				r.broadcastLocked(TimerUpdateMessage{Type: "timerUpdate", TimeLeft: max(r.timeLeft, 0)})

				if r.timeLeft <= 0 {
					r.finalizeLocked()
					r.mu.Unlock()
					return
				}
				r.mu.Unlock()
			}
		}
	}()
}

// submitAnswer records exactly one answer per player per question; later
// submissions and answers outside an open window are benign no-ops.
// Correct answers earn points by arrival order, keyed by timestamp.
func (r *Room) submitAnswer(playerID string, choice int, clientTimeLeft *int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != statePlaying || !r.questionOpen || r.current >= len(r.questions) {
		return
	}

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}

	for _, a := range r.answers {
		if a.playerID == playerID {
			return
		}
	}

	question := r.questions[r.current]
	timeLeft := r.timeLeft
	if clientTimeLeft != nil {
		timeLeft = *clientTimeLeft
	}

	answer := Answer{
		playerID:   playerID,
		playerName: p.name,
		choice:     choice,
		correct:    choice == question.Correct,
		timeLeft:   timeLeft,
		submitted:  time.Now(),
	}

	order := 0
	if answer.correct {
		order = 1
		for _, a := range r.answers {
			if a.correct && !a.submitted.After(answer.submitted) {
				order++
			}
		}
		answer.awarded = pointsForOrder(order)
		r.scores[playerID] += answer.awarded
	}

	r.answers = append(r.answers, answer)
	r.lastActive = time.Now()

	r.broadcastLocked(AnswerReceivedMessage{
		Type:        "answerReceived",
		PlayerID:    playerID,
		PlayerName:  p.name,
		AnswerIndex: choice,
		TimeLeft:    timeLeft,
		AnswerOrder: order,
	})

	if len(r.answers) >= len(r.players) {
		seq := r.seq
		time.AfterFunc(graceDelay, func() { r.finalizeQuestion(seq) })
	}
}

// finalizeQuestion is the guarded entry point shared by the ticker, the
// fail-safe deadline, and the full-quorum grace timer. Whichever fires
// first wins; the rest no-op on the stale sequence number.
func (r *Room) finalizeQuestion(seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq != seq || r.state != statePlaying {
		return
	}

	r.finalizeLocked()
}

func (r *Room) finalizeLocked() {
	r.seq++
	r.cancelTimersLocked()
	r.questionOpen = false

	// Recompute awards from timestamps rather than trusting the live
	// tally, so interleaved submissions settle to one consistent result.
	results := computeAwards(r.answers)
	for i, res := range results {
		if _, member := r.scores[res.PlayerID]; member {
			r.scores[res.PlayerID] += res.Points - r.answers[i].awarded
		}
	}

	r.broadcastLocked(QuestionEndMessage{
		Type:     "questionEnd",
		Question: r.questions[r.current],
		Results:  results,
	})

	seq := r.seq
	time.AfterFunc(advanceDelay, func() { r.advance(seq) })
}

// advance moves to the next question, or finishes the match.
func (r *Room) advance(seq int) {
	r.mu.Lock()

	if r.seq != seq || r.state != statePlaying {
		r.mu.Unlock()
		return
	}

	r.current++
	if r.current >= len(r.questions) {
		r.finishLocked()
		r.mu.Unlock()
		return
	}

	r.broadcastLocked(NextQuestionMessage{Type: "nextQuestion", QuestionNumber: r.current + 1})
	r.mu.Unlock()

	go r.runCountdown(seq)
}

func (r *Room) finishLocked() {
	r.state = stateFinished
	r.seq++
	r.cancelTimersLocked()

	r.broadcastLocked(GameEndMessage{
		Type:        "gameEnd",
		FinalScores: r.finalScoresLocked(),
	})
}

// finalScoresLocked ranks by descending score; ties keep join order.
func (r *Room) finalScoresLocked() []FinalScore {
	scores := make([]FinalScore, 0, len(r.players))
	for _, p := range r.players {
		scores = append(scores, FinalScore{
			PlayerID:   p.id,
			PlayerName: p.name,
			Score:      r.scores[p.id],
		})
	}

	slices.SortStableFunc(scores, func(a, b FinalScore) int {
		return b.Score - a.Score
	})

	return scores
}

func (r *Room) cancelTimersLocked() {
	if r.tickCancel != nil {
		r.tickCancel()
		r.tickCancel = nil
	}
	if r.failsafe != nil {
		r.failsafe.Stop()
		r.failsafe = nil
	}
}

// close tears the room down for the reaper: invalidates timers and drops
// every member connection. Returns the member IDs so the caller can purge
// the player registry.
func (r *Room) close() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.cancelTimersLocked()
	r.state = stateFinished

	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.id)
		if p.client != nil {
			p.client.close()
			p.client = nil
		}
	}
	r.players = nil
	r.scores = map[string]int{}

	return ids
}

// pointsForOrder maps arrival order among correct answers to points:
// first 100, second 80, third 60, everyone after 40.
func pointsForOrder(order int) int {
	switch order {
	case 1:
		return 100
	case 2:
		return 80
	case 3:
		return 60
	default:
		return 40
	}
}

// computeAwards produces the per-answer breakdown for questionEnd,
// ordered like the answers slice. An answer's rank is the number of
// correct answers submitted at or before its own timestamp, which keeps
// the result independent of call interleaving.
func computeAwards(answers []Answer) []AnswerResult {
	results := make([]AnswerResult, 0, len(answers))

	for _, a := range answers {
		result := AnswerResult{
			PlayerID:    a.playerID,
			PlayerName:  a.playerName,
			AnswerIndex: a.choice,
			Correct:     a.correct,
		}

		if a.correct {
			order := 0
			for _, b := range answers {
				if b.correct && !b.submitted.After(a.submitted) {
					order++
				}
			}
			result.Points = pointsForOrder(order)
		}

		results = append(results, result)
	}

	return results
}
