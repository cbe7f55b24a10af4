package games

// Each player joins a room by six-character code, or creates one and becomes its host
// The host starts the match once at least two players are present
// Six questions are chosen: a custom list if the host supplies one, else by category, else at random
// Every question is preceded by a 5..1 countdown, then shown with a 15-second answer window
// Correct answers score by arrival order: 100, 80, 60, then 40 for everyone later
// When the window closes (or everyone has answered), the correct answer and points are revealed
// After the last question, a final leaderboard is shown; the room lives until everyone leaves

// Display formats:
// - Lobby list with ready marks and a host star
// - Question card with one button per choice, countdown and timer overlays

// Implementation details:
// - One websocket endpoint; rooms are addressed by code inside messages
// - The host role passes to the earliest-joined remaining player on departure
// - Mid-game departures do not pause the match; the answer quorum shrinks with membership
