package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsForOrder(t *testing.T) {
	assert.Equal(t, 100, pointsForOrder(1))
	assert.Equal(t, 80, pointsForOrder(2))
	assert.Equal(t, 60, pointsForOrder(3))
	assert.Equal(t, 40, pointsForOrder(4))
	assert.Equal(t, 40, pointsForOrder(9))
}

func TestComputeAwardsTiersByTimestamp(t *testing.T) {
	base := time.Now()

	// Deliberately appended out of arrival order: the tier must follow
	// timestamps, not slice position.
	answers := []Answer{
		{playerID: "p3", correct: true, submitted: base.Add(3 * time.Second)},
		{playerID: "p1", correct: true, submitted: base.Add(1 * time.Second)},
		{playerID: "p5", correct: true, submitted: base.Add(5 * time.Second)},
		{playerID: "p2", correct: true, submitted: base.Add(2 * time.Second)},
		{playerID: "p4", correct: true, submitted: base.Add(4 * time.Second)},
	}

	results := computeAwards(answers)
	require.Len(t, results, 5)

	points := make(map[string]int)
	for _, r := range results {
		points[r.PlayerID] = r.Points
	}

	assert.Equal(t, 100, points["p1"])
	assert.Equal(t, 80, points["p2"])
	assert.Equal(t, 60, points["p3"])
	assert.Equal(t, 40, points["p4"])
	assert.Equal(t, 40, points["p5"])
}

func TestComputeAwardsIncorrectScoresZero(t *testing.T) {
	base := time.Now()

	answers := []Answer{
		{playerID: "p1", correct: false, submitted: base},
		{playerID: "p2", correct: true, submitted: base.Add(time.Second)},
	}

	results := computeAwards(answers)
	require.Len(t, results, 2)

	assert.Equal(t, 0, results[0].Points)
	assert.False(t, results[0].Correct)
	assert.Equal(t, 100, results[1].Points)
	assert.True(t, results[1].Correct)
}

func TestComputeAwardsEmpty(t *testing.T) {
	assert.Empty(t, computeAwards(nil))
}

func TestFinalScoresTieBreaksByJoinOrder(t *testing.T) {
	cfg := testConfig()
	host := &Player{id: "a", name: "Alice"}
	room := newRoom(cfg, "TEST01", host)

	room.players = append(room.players,
		&Player{id: "b", name: "Bob"},
		&Player{id: "c", name: "Carol"},
		&Player{id: "d", name: "Dave"},
	)
	room.scores = map[string]int{"a": 100, "b": 180, "c": 180, "d": 100}

	room.mu.Lock()
	scores := room.finalScoresLocked()
	room.mu.Unlock()

	require.Len(t, scores, 4)
	assert.Equal(t, "b", scores[0].PlayerID)
	assert.Equal(t, "c", scores[1].PlayerID)
	assert.Equal(t, "a", scores[2].PlayerID)
	assert.Equal(t, "d", scores[3].PlayerID)
}

func TestRemovePlayerPromotesEarliestJoiner(t *testing.T) {
	cfg := testConfig()
	host := &Player{id: "a", name: "Alice"}
	room := newRoom(cfg, "TEST02", host)
	room.players = append(room.players,
		&Player{id: "b", name: "Bob"},
		&Player{id: "c", name: "Carol"},
	)
	room.scores["b"] = 0
	room.scores["c"] = 0

	removed, empty := room.removePlayer("a")
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, "b", room.host)

	removed, empty = room.removePlayer("b")
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, "c", room.host)

	removed, empty = room.removePlayer("c")
	assert.True(t, removed)
	assert.True(t, empty)
}

func TestRemoveUnknownPlayerIsNoOp(t *testing.T) {
	cfg := testConfig()
	room := newRoom(cfg, "TEST03", &Player{id: "a", name: "Alice"})

	removed, empty := room.removePlayer("nobody")
	assert.False(t, removed)
	assert.False(t, empty)
	assert.Len(t, room.players, 1)
}
