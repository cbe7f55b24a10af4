package main

// Messages coming from clients. A single envelope is decoded once at the
// websocket boundary and dispatched on Type; unused fields stay empty.
type ClientMessage struct {
	Type        string     `json:"type"`                  // "createRoom", "joinRoom", "leaveRoom", "toggleReady", "startGame", "selectAnswer"
	PlayerName  string     `json:"playerName,omitempty"`  // createRoom / joinRoom
	RoomID      string     `json:"roomId,omitempty"`      // joinRoom / startGame / selectAnswer
	PlayerID    string     `json:"playerId,omitempty"`    // leaveRoom / toggleReady / startGame / selectAnswer
	AnswerIndex *int       `json:"answerIndex,omitempty"` // selectAnswer
	TimeLeft    *int       `json:"timeLeft,omitempty"`    // selectAnswer (client-reported, optional)
	Questions   []Question `json:"questions,omitempty"`   // startGame (custom question set)
	Categories  []string   `json:"categories,omitempty"`  // startGame (catalog filter)
}

// PlayerInfo is the public view of a player, included in membership updates.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	IsHost bool   `json:"isHost"`
}

// Sent only to the creating connection.
type RoomCreatedMessage struct {
	Type     string       `json:"type"` // "roomCreated"
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

// Sent only to the joining connection.
type JoinedRoomMessage struct {
	Type     string       `json:"type"` // "joinedRoom"
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

type PlayerJoinedMessage struct {
	Type       string       `json:"type"` // "playerJoined"
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

// Broadcast whenever membership state changes without anyone leaving,
// currently only on ready toggles.
type PlayerUpdateMessage struct {
	Type    string       `json:"type"` // "playerUpdate"
	Players []PlayerInfo `json:"players"`
}

type PlayerLeftMessage struct {
	Type       string       `json:"type"` // "playerLeft"
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Players    []PlayerInfo `json:"players"`
}

type NewHostMessage struct {
	Type   string `json:"type"` // "newHost"
	HostID string `json:"hostId"`
}

// Sent to a single connection on protocol, authorization, or precondition
// failures. Never fatal.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// GameStartMessage carries the full selected question set, correct indices
// included; clients are trusted not to peek.
type GameStartMessage struct {
	Type      string     `json:"type"` // "gameStart"
	Questions []Question `json:"questions"`
}

type CountdownMessage struct {
	Type           string `json:"type"` // "countdown"
	Count          int    `json:"count"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
}

type NewQuestionMessage struct {
	Type           string   `json:"type"` // "newQuestion"
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	Question       Question `json:"question"`
	TimeLeft       int      `json:"timeLeft"`
}

type TimerUpdateMessage struct {
	Type     string `json:"type"` // "timerUpdate"
	TimeLeft int    `json:"timeLeft"`
}

// Broadcast when an answer is accepted. AnswerOrder counts correct
// submissions so far, or 0 for an incorrect one; the per-player point
// breakdown waits for questionEnd.
type AnswerReceivedMessage struct {
	Type        string `json:"type"` // "answerReceived"
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	AnswerIndex int    `json:"answerIndex"`
	TimeLeft    int    `json:"timeLeft"`
	AnswerOrder int    `json:"answerOrder"`
}

// AnswerResult is the per-player breakdown included in questionEnd.
type AnswerResult struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	AnswerIndex int    `json:"answerIndex"`
	Correct     bool   `json:"correct"`
	Points      int    `json:"points"`
}

type QuestionEndMessage struct {
	Type     string         `json:"type"` // "questionEnd"
	Question Question       `json:"question"`
	Results  []AnswerResult `json:"results"`
}

type NextQuestionMessage struct {
	Type           string `json:"type"` // "nextQuestion"
	QuestionNumber int    `json:"questionNumber"`
}

type FinalScore struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

type GameEndMessage struct {
	Type        string       `json:"type"` // "gameEnd"
	FinalScores []FinalScore `json:"finalScores"`
}
