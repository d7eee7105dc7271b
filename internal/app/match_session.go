package app

import (
	"sort"
	"sync"
	"time"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
	"github.com/giangittb112000/olympia-sub001/internal/scoring"
)

// MatchSession is the in-memory authoritative state for one match: the
// player roster with score records and the finish-line round state machine.
// Every mutation goes through its mutex, so operator and player actions are
// serialized per match; the countdown expiry re-enters through the same lock.
type MatchSession struct {
	id    string
	clock func() time.Time

	mu       sync.Mutex
	players  map[string]*domain.ScoreRecord
	played   map[string]bool
	status   domain.RoundStatus
	selected string
	pack     *domain.Pack
	qIndex   int
	deadline time.Time
	timerGen int
	timer    *time.Timer
	buzzer   []string
	star     bool
	stolenBy string

	subscribers map[chan domain.RoundEvent]struct{}
}

// NewMatchSession is exported for infrastructure layers that seed sessions.
func NewMatchSession(id string) *MatchSession {
	return NewMatchSessionWithClock(id, time.Now)
}

// NewMatchSessionWithClock is test-only for deterministic timestamps.
func NewMatchSessionWithClock(id string, now func() time.Time) *MatchSession {
	return &MatchSession{
		id:          id,
		clock:       now,
		players:     make(map[string]*domain.ScoreRecord),
		played:      make(map[string]bool),
		status:      domain.StatusIdle,
		qIndex:      -1,
		subscribers: make(map[chan domain.RoundEvent]struct{}),
	}
}

func (s *MatchSession) join(playerID, displayName string) domain.RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.players[playerID]; ok {
		rec.DisplayName = displayName
		rec.UpdatedAt = s.clock()
	} else {
		s.players[playerID] = &domain.ScoreRecord{
			PlayerID:    playerID,
			DisplayName: displayName,
			UpdatedAt:   s.clock(),
		}
	}
	return s.broadcastSyncLocked()
}

func (s *MatchSession) subscribe() (<-chan domain.RoundEvent, func()) {
	ch := make(chan domain.RoundEvent, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	ch <- domain.RoundEvent{Type: domain.EventRoundStateSync, State: &snap}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *MatchSession) snapshot() domain.RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *MatchSession) scoreboard() []domain.ScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.ScoreRecord, 0, len(s.players))
	for _, rec := range s.players {
		records = append(records, *rec)
	}
	sortScoreboard(records)
	return records
}

func (s *MatchSession) selectPlayer(playerID string) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusIdle && s.status != domain.StatusPlayerSelected {
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "select_player"}
	}
	if s.eligibleLocked() == 0 {
		return domain.RoundSnapshot{}, domain.Validationf("no players remain eligible for a finish-line turn")
	}
	if _, ok := s.players[playerID]; !ok {
		return domain.RoundSnapshot{}, domain.ErrPlayerNotFound
	}
	if s.played[playerID] {
		return domain.RoundSnapshot{}, domain.Validationf("player %s already took their turn", playerID)
	}

	s.status = domain.StatusPlayerSelected
	s.selected = playerID
	return s.broadcastSyncLocked(), nil
}

// choosePack runs the allocation callback while holding the session lock so
// no two allocations against the match interleave. On error nothing changes
// and subscribers are not notified.
func (s *MatchSession) choosePack(allocate func() (domain.Pack, error)) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusPlayerSelected || s.selected == "" {
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "choose_pack"}
	}

	pack, err := allocate()
	if err != nil {
		return domain.RoundSnapshot{}, err
	}

	s.pack = &pack
	s.qIndex = -1
	s.status = domain.StatusPackChosen
	return s.broadcastSyncLocked(), nil
}

func (s *MatchSession) advanceQuestion(questionSeconds int) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusPackChosen, domain.StatusGraded, domain.StatusStealResolved, domain.StatusStealWindow:
	default:
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "advance_question"}
	}

	s.cancelCountdownLocked()

	next := s.qIndex + 1
	if next < len(s.pack.Questions) {
		s.qIndex = next
		s.status = domain.StatusQuestionActive
		s.star = false
		s.stolenBy = ""
		s.buzzer = nil
		s.startCountdownLocked(questionSeconds)
		return s.broadcastSyncLocked(), nil
	}

	s.broadcastLocked(domain.RoundEvent{Type: domain.EventPackExhausted})
	s.played[s.selected] = true
	s.selected = ""
	s.pack = nil
	s.qIndex = -1
	s.buzzer = nil
	s.star = false
	s.stolenBy = ""
	if s.eligibleLocked() > 0 {
		s.status = domain.StatusPlayerSelected
	} else {
		s.status = domain.StatusRoundComplete
	}
	return s.broadcastSyncLocked(), nil
}

func (s *MatchSession) gradeAnswer(correct, starActive bool, stealSeconds int, commit func(domain.ScoreRecord) error) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusQuestionActive {
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "grade_answer"}
	}

	s.cancelCountdownLocked()
	question := s.pack.Questions[s.qIndex]
	s.star = starActive

	delta := scoring.MainScore(question.Points, correct, starActive)
	rec, err := s.applyDeltaLocked(s.selected, domain.RoundFinish, delta)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}
	if err := commit(*rec); err != nil {
		s.revertDeltaLocked(s.selected, domain.RoundFinish, delta)
		return domain.RoundSnapshot{}, err
	}
	s.broadcastLocked(domain.RoundEvent{Type: domain.EventScoreUpdated, Score: copyRecord(rec)})

	if !correct && s.othersExistLocked() {
		s.status = domain.StatusStealWindow
		s.buzzer = nil
		s.startCountdownLocked(stealSeconds)
	} else {
		s.status = domain.StatusGraded
	}
	return s.broadcastSyncLocked(), nil
}

func (s *MatchSession) buzzIn(playerID string) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusStealWindow {
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "buzz_in"}
	}
	if _, ok := s.players[playerID]; !ok {
		return domain.RoundSnapshot{}, domain.ErrPlayerNotFound
	}
	if playerID == s.selected {
		return domain.RoundSnapshot{}, domain.Validationf("active player cannot steal their own question")
	}
	for _, queued := range s.buzzer {
		if queued == playerID {
			// Duplicate buzzes keep the original position.
			return s.snapshotLocked(), nil
		}
	}

	s.buzzer = append(s.buzzer, playerID)
	return s.broadcastSyncLocked(), nil
}

func (s *MatchSession) gradeSteal(correct bool, commit func(domain.ScoreRecord) error) (domain.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusStealWindow {
		return domain.RoundSnapshot{}, &domain.InvalidTransitionError{From: s.status, Action: "grade_steal"}
	}
	if len(s.buzzer) == 0 {
		return domain.RoundSnapshot{}, domain.Validationf("no steal attempts queued")
	}

	s.cancelCountdownLocked()
	stealer := s.buzzer[0]
	question := s.pack.Questions[s.qIndex]
	deltas := scoring.StealScore(question.Points, correct)

	// Both records move together or not at all: apply the deltas, persist
	// both, then broadcast. Any failure reverts everything so a retried
	// grade_steal starts from the pre-grade scores.
	stealerRec, err := s.applyDeltaLocked(stealer, domain.RoundFinish, deltas.Stealer)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}
	var ownerRec *domain.ScoreRecord
	if deltas.Owner != 0 {
		ownerRec, err = s.applyDeltaLocked(s.selected, domain.RoundFinish, deltas.Owner)
		if err != nil {
			s.revertDeltaLocked(stealer, domain.RoundFinish, deltas.Stealer)
			return domain.RoundSnapshot{}, err
		}
	}
	revert := func() {
		s.revertDeltaLocked(stealer, domain.RoundFinish, deltas.Stealer)
		if ownerRec != nil {
			s.revertDeltaLocked(s.selected, domain.RoundFinish, deltas.Owner)
		}
	}

	if err := commit(*stealerRec); err != nil {
		revert()
		return domain.RoundSnapshot{}, err
	}
	if ownerRec != nil {
		if err := commit(*ownerRec); err != nil {
			revert()
			// Undo the stealer write that already landed; if the store is
			// still down the in-process record stays authoritative and the
			// mirror catches up on the next successful commit.
			_ = commit(*stealerRec)
			return domain.RoundSnapshot{}, err
		}
	}

	s.broadcastLocked(domain.RoundEvent{Type: domain.EventScoreUpdated, Score: copyRecord(stealerRec)})
	if ownerRec != nil {
		s.broadcastLocked(domain.RoundEvent{Type: domain.EventScoreUpdated, Score: copyRecord(ownerRec)})
	}

	if correct {
		s.stolenBy = stealer
	}
	// One steal per question: the rest of the queue is discarded.
	s.buzzer = nil
	s.status = domain.StatusStealResolved
	return s.broadcastSyncLocked(), nil
}

// currentAnswer exposes the reference answer of the active question for the
// advisory judge. Valid while an attempt or steal is being considered.
func (s *MatchSession) currentAnswer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusQuestionActive, domain.StatusStealWindow:
	default:
		return "", &domain.InvalidTransitionError{From: s.status, Action: "judge_answer"}
	}
	return s.pack.Questions[s.qIndex].Answer, nil
}

func (s *MatchSession) commitScore(playerID string, round domain.Round, delta int, commit func(domain.ScoreRecord) error) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.applyDeltaLocked(playerID, round, delta)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if err := commit(*rec); err != nil {
		s.revertDeltaLocked(playerID, round, delta)
		return domain.ScoreRecord{}, err
	}
	s.broadcastLocked(domain.RoundEvent{Type: domain.EventScoreUpdated, Score: copyRecord(rec)})
	return *rec, nil
}

func (s *MatchSession) reset() domain.RoundSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelCountdownLocked()
	s.status = domain.StatusIdle
	s.selected = ""
	s.pack = nil
	s.qIndex = -1
	s.buzzer = nil
	s.star = false
	s.stolenBy = ""
	s.played = make(map[string]bool)
	return s.broadcastSyncLocked()
}

// startCountdownLocked arms the server-authoritative countdown. The
// generation counter invalidates stale expirations after cancel or reset.
func (s *MatchSession) startCountdownLocked(seconds int) {
	s.timerGen++
	generation := s.timerGen
	s.deadline = s.clock().Add(time.Duration(seconds) * time.Second)
	s.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		s.expireCountdown(generation)
	})
}

func (s *MatchSession) cancelCountdownLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}
}

// expireCountdown delivers the time-up signal through the session lock, the
// same serialized path as every operator action. It never transitions state:
// grading stays with the operator even after time runs out.
func (s *MatchSession) expireCountdown(generation int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.timerGen {
		return
	}
	s.timer = nil
	s.broadcastSyncLocked()
}

func (s *MatchSession) applyDeltaLocked(playerID string, round domain.Round, delta int) (*domain.ScoreRecord, error) {
	rec, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	switch round {
	case domain.RoundWarmup:
		rec.Rounds.Warmup += delta
	case domain.RoundObstacles:
		rec.Rounds.Obstacles += delta
	case domain.RoundAcceleration:
		rec.Rounds.Acceleration += delta
	case domain.RoundFinish:
		rec.Rounds.Finish += delta
	}
	rec.Total = rec.Rounds.Sum()
	rec.UpdatedAt = s.clock()
	return rec, nil
}

func (s *MatchSession) revertDeltaLocked(playerID string, round domain.Round, delta int) {
	_, _ = s.applyDeltaLocked(playerID, round, -delta)
}

func (s *MatchSession) eligibleLocked() int {
	eligible := 0
	for id := range s.players {
		if !s.played[id] {
			eligible++
		}
	}
	return eligible
}

func (s *MatchSession) othersExistLocked() bool {
	return len(s.players) > 1
}

func (s *MatchSession) snapshotLocked() domain.RoundSnapshot {
	snap := domain.RoundSnapshot{
		MatchID:          s.id,
		Status:           s.status,
		SelectedPlayerID: s.selected,
		QuestionIndex:    s.qIndex,
		BuzzerQueue:      append([]string(nil), s.buzzer...),
		StarActive:       s.star,
		StolenBy:         s.stolenBy,
		UpdatedAt:        s.clock(),
	}
	if snap.BuzzerQueue == nil {
		snap.BuzzerQueue = []string{}
	}
	if !s.deadline.IsZero() {
		snap.TimeLeft = clampSeconds(s.deadline.Sub(s.clock()))
	}
	if s.pack != nil {
		snap.PackID = s.pack.ID
		snap.PackSize = s.pack.Size
		snap.QuestionCount = len(s.pack.Questions)
		if s.qIndex >= 0 && s.qIndex < len(s.pack.Questions) {
			q := s.pack.Questions[s.qIndex]
			snap.Question = &domain.QuestionView{
				ID:          q.ID,
				Text:        q.Text,
				Description: q.Description,
				MediaRef:    q.MediaRef,
				Points:      q.Points,
			}
		}
	}
	return snap
}

func (s *MatchSession) broadcastSyncLocked() domain.RoundSnapshot {
	snap := s.snapshotLocked()
	s.broadcastLocked(domain.RoundEvent{Type: domain.EventRoundStateSync, State: &snap})
	return snap
}

// broadcastLocked fans the event out, dropping the oldest update for a slow
// subscriber rather than blocking the serialized event path.
func (s *MatchSession) broadcastLocked(event domain.RoundEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func copyRecord(rec *domain.ScoreRecord) *domain.ScoreRecord {
	c := *rec
	return &c
}

func sortScoreboard(records []domain.ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Total != records[j].Total {
			return records[i].Total > records[j].Total
		}
		return records[i].DisplayName < records[j].DisplayName
	})
}
