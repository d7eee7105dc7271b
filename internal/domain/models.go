package domain

import "time"

// Point values a finish-line question can carry.
const (
	Points10 = 10
	Points20 = 20
	Points30 = 30
)

// PointValues lists the valid question categories in bank order.
var PointValues = []int{Points10, Points20, Points30}

// Pack sizes an operator may request for a finish-line turn.
const (
	PackSize40 = 40
	PackSize60 = 60
	PackSize80 = 80
)

// Round identifies one of the four match rounds for score bookkeeping.
type Round string

const (
	RoundWarmup       Round = "warmup"
	RoundObstacles    Round = "obstacles"
	RoundAcceleration Round = "acceleration"
	RoundFinish       Round = "finish"
)

// RoundStatus enumerates the finish-line state machine states.
type RoundStatus string

const (
	StatusIdle           RoundStatus = "idle"
	StatusPlayerSelected RoundStatus = "player_selected"
	StatusPackChosen     RoundStatus = "pack_chosen"
	StatusQuestionActive RoundStatus = "question_active"
	StatusGraded         RoundStatus = "graded"
	StatusStealWindow    RoundStatus = "steal_window"
	StatusStealResolved  RoundStatus = "steal_resolved"
	StatusRoundComplete  RoundStatus = "round_complete"
)

// QuestionDoc is the persisted shape of one bank question.
type QuestionDoc struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	MediaRef    string `json:"mediaRef,omitempty"`
	Answer      string `json:"answer"`
}

// BankDocument is the persisted shape of a match's question bank,
// bucketed by point value.
type BankDocument struct {
	MatchID     string        `json:"matchId"`
	Questions10 []QuestionDoc `json:"questions10pt"`
	Questions20 []QuestionDoc `json:"questions20pt"`
	Questions30 []QuestionDoc `json:"questions30pt"`
}

// PackQuestion is an ephemeral snapshot of a dealt question. The ID is
// generated per pack; bank identity stays server side via BankRef.
type PackQuestion struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	MediaRef    string `json:"mediaRef,omitempty"`
	Points      int    `json:"points"`
	Answer      string `json:"-"`
	BankRef     string `json:"-"`
}

// Pack is the fixed-composition bundle dealt for one finish-line turn.
// It lives only for the duration of that turn.
type Pack struct {
	ID        string         `json:"packId"`
	Size      int            `json:"packSize"`
	Questions []PackQuestion `json:"questions"`
}

// CategoryStats reports bank consumption for one point-value bucket.
type CategoryStats struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// RoundScores holds per-round score components for a player.
type RoundScores struct {
	Warmup       int `json:"warmup"`
	Obstacles    int `json:"obstacles"`
	Acceleration int `json:"acceleration"`
	Finish       int `json:"finish"`
}

// Sum returns the total implied by the per-round components.
func (r RoundScores) Sum() int {
	return r.Warmup + r.Obstacles + r.Acceleration + r.Finish
}

// ScoreRecord is the authoritative score state for one player. Total must
// equal Rounds.Sum() after every commit.
type ScoreRecord struct {
	PlayerID    string      `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Rounds      RoundScores `json:"perRoundScores"`
	Total       int         `json:"total"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// QuestionView is the client-safe projection of the active question.
type QuestionView struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	MediaRef    string `json:"mediaRef,omitempty"`
	Points      int    `json:"points"`
}

// RoundSnapshot is the broadcast view of the finish-line round state.
type RoundSnapshot struct {
	MatchID          string        `json:"matchId"`
	Status           RoundStatus   `json:"status"`
	SelectedPlayerID string        `json:"selectedPlayerId,omitempty"`
	PackID           string        `json:"packId,omitempty"`
	PackSize         int           `json:"packSize,omitempty"`
	QuestionIndex    int           `json:"currentQuestionIndex"`
	QuestionCount    int           `json:"questionCount"`
	Question         *QuestionView `json:"question,omitempty"`
	TimeLeft         int           `json:"timeLeft"`
	BuzzerQueue      []string      `json:"buzzerQueue"`
	StarActive       bool          `json:"starActive"`
	StolenBy         string        `json:"stolenBy,omitempty"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Event types fanned out to round subscribers.
const (
	EventRoundStateSync = "round_state_sync"
	EventScoreUpdated   = "score_updated"
	EventPackExhausted  = "pack_exhausted"
)

// JudgeVerdict is the advisory fuzzy-match result for a submitted answer.
// The operator's explicit decision stays authoritative.
type JudgeVerdict struct {
	Candidate  string  `json:"candidate"`
	Similarity float64 `json:"similarity"`
	Suggested  bool    `json:"suggested"`
}

// RoundEvent is one update on the realtime channel.
type RoundEvent struct {
	Type  string         `json:"type"`
	State *RoundSnapshot `json:"state,omitempty"`
	Score *ScoreRecord   `json:"score,omitempty"`
}
