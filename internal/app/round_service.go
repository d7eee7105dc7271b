package app

import (
	"context"
	"fmt"
	"time"

	"github.com/giangittb112000/olympia-sub001/internal/bank"
	"github.com/giangittb112000/olympia-sub001/internal/domain"
	"github.com/giangittb112000/olympia-sub001/internal/judge"
)

// SessionRepository abstracts how match sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(matchID string) *MatchSession
	Get(matchID string) (*MatchSession, bool)
	Delete(matchID string)
}

// BankRepository loads and stores question banks. GetBank must hand back the
// same authoritative entity for repeated calls within a match.
type BankRepository interface {
	GetBank(ctx context.Context, matchID string) (*bank.Bank, error)
	PutBank(ctx context.Context, doc domain.BankDocument) (*bank.Bank, error)
	DeleteBank(ctx context.Context, matchID string) error
}

// UsageStore mirrors consumed question refs to durable storage. MarkUsed must
// detect racing consumers and return domain.ErrConcurrentModification rather
// than overwrite.
type UsageStore interface {
	MarkUsed(ctx context.Context, matchID string, refs []string) error
	Reset(ctx context.Context, matchID string) error
}

// ScoreStore mirrors committed player score records.
type ScoreStore interface {
	Save(ctx context.Context, matchID string, rec domain.ScoreRecord) error
}

// Options tunes the round timers.
type Options struct {
	QuestionSeconds int
	StealSeconds    int
}

func (o Options) withDefaults() Options {
	if o.QuestionSeconds <= 0 {
		o.QuestionSeconds = 15
	}
	if o.StealSeconds <= 0 {
		o.StealSeconds = 5
	}
	return o
}

// RoundService drives the finish-line round for the active match: player
// selection, pack delivery, grading, steals, and score commitment.
type RoundService struct {
	sessions SessionRepository
	banks    BankRepository
	usage    UsageStore
	scores   ScoreStore
	alloc    *bank.Allocator
	opts     Options
}

func NewRoundService(sessions SessionRepository, banks BankRepository, usage UsageStore, scores ScoreStore, alloc *bank.Allocator, opts Options) *RoundService {
	if alloc == nil {
		alloc = bank.NewAllocator(nil)
	}
	return &RoundService{
		sessions: sessions,
		banks:    banks,
		usage:    usage,
		scores:   scores,
		alloc:    alloc,
		opts:     opts.withDefaults(),
	}
}

// OpenMatch ensures a session exists for the match; used by operator clients
// that observe without playing. The bank must be configured first.
func (s *RoundService) OpenMatch(ctx context.Context, matchID string) (domain.RoundSnapshot, error) {
	if _, err := s.banks.GetBank(ctx, matchID); err != nil {
		return domain.RoundSnapshot{}, err
	}
	return s.sessions.GetOrCreate(matchID).snapshot(), nil
}

// Join registers a player in the match roster with a zeroed score record.
// Joining twice refreshes the display name and keeps the scores.
func (s *RoundService) Join(ctx context.Context, matchID, playerID, displayName string) (domain.RoundSnapshot, error) {
	if _, err := s.banks.GetBank(ctx, matchID); err != nil {
		return domain.RoundSnapshot{}, err
	}
	return s.sessions.GetOrCreate(matchID).join(playerID, displayName), nil
}

// Subscribe returns a channel of round events for a match. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *RoundService) Subscribe(_ context.Context, matchID string) (<-chan domain.RoundEvent, func(), error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Snapshot returns the current round state.
func (s *RoundService) Snapshot(_ context.Context, matchID string) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// Scores returns all score records, highest total first.
func (s *RoundService) Scores(_ context.Context, matchID string) ([]domain.ScoreRecord, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.scoreboard(), nil
}

// SelectPlayer picks the next player to take a finish-line turn.
func (s *RoundService) SelectPlayer(_ context.Context, matchID, playerID string) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.selectPlayer(playerID)
}

// ChoosePack allocates a pack of the requested size for the selected player.
// On allocation failure the round state is untouched and the error is
// returned to the caller only; subscribers see nothing.
func (s *RoundService) ChoosePack(ctx context.Context, matchID string, size int) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	b, err := s.banks.GetBank(ctx, matchID)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}

	return session.choosePack(func() (domain.Pack, error) {
		pack, err := s.alloc.Allocate(b, size)
		if err != nil {
			return domain.Pack{}, err
		}
		refs := make([]string, 0, len(pack.Questions))
		for _, q := range pack.Questions {
			refs = append(refs, q.BankRef)
		}
		if err := s.usage.MarkUsed(ctx, matchID, refs); err != nil {
			// The draw never happened as far as anyone can observe.
			b.Release(refs)
			return domain.Pack{}, fmt.Errorf("persist pack usage: %w", err)
		}
		return pack, nil
	})
}

// AdvanceQuestion moves to the next question of the pack, or closes the turn
// when the pack is exhausted.
func (s *RoundService) AdvanceQuestion(_ context.Context, matchID string) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.advanceQuestion(s.opts.QuestionSeconds)
}

// GradeAnswer records the operator's decision for the active player's attempt
// and commits the resulting finish-round delta.
func (s *RoundService) GradeAnswer(ctx context.Context, matchID string, correct, starActive bool) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.gradeAnswer(correct, starActive, s.opts.StealSeconds, s.committer(ctx, matchID))
}

// JudgeAnswer scores a transcribed answer against the active question's
// reference answer. Advisory only: grading still takes the operator's
// explicit decision.
func (s *RoundService) JudgeAnswer(_ context.Context, matchID, candidate string) (domain.JudgeVerdict, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.JudgeVerdict{}, domain.ErrSessionNotFound
	}
	reference, err := session.currentAnswer()
	if err != nil {
		return domain.JudgeVerdict{}, err
	}
	return domain.JudgeVerdict{
		Candidate:  candidate,
		Similarity: judge.Similarity(candidate, reference),
		Suggested:  judge.IsCorrect(candidate, reference),
	}, nil
}

// BuzzIn appends a player to the steal queue, first received first served.
func (s *RoundService) BuzzIn(_ context.Context, matchID, playerID string) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.buzzIn(playerID)
}

// GradeSteal resolves the first queued steal attempt; later queue entries are
// discarded for this question.
func (s *RoundService) GradeSteal(ctx context.Context, matchID string, correct bool) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	return session.gradeSteal(correct, s.committer(ctx, matchID))
}

// CommitScore applies an operator-driven delta for one of the other rounds
// (warmup, obstacles, acceleration). The finish round is owned by the state
// machine and rejected here.
func (s *RoundService) CommitScore(ctx context.Context, matchID, playerID string, round domain.Round, delta int) (domain.ScoreRecord, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.ScoreRecord{}, domain.ErrSessionNotFound
	}
	if round == domain.RoundFinish {
		return domain.ScoreRecord{}, domain.Validationf("finish round scores are committed by grading actions")
	}
	switch round {
	case domain.RoundWarmup, domain.RoundObstacles, domain.RoundAcceleration:
	default:
		return domain.ScoreRecord{}, domain.Validationf("unknown round %q", round)
	}
	return session.commitScore(playerID, round, delta, s.committer(ctx, matchID))
}

// ResetRound cancels any countdown, restores IDLE defaults, clears the
// turn ledger, and resets bank usage. Meant for the gap between rounds or
// matches; an in-flight question is abandoned without recovery.
func (s *RoundService) ResetRound(ctx context.Context, matchID string) (domain.RoundSnapshot, error) {
	session, ok := s.sessions.Get(matchID)
	if !ok {
		return domain.RoundSnapshot{}, domain.ErrSessionNotFound
	}
	b, err := s.banks.GetBank(ctx, matchID)
	if err != nil {
		return domain.RoundSnapshot{}, err
	}
	b.ResetUsage()
	if err := s.usage.Reset(ctx, matchID); err != nil {
		return domain.RoundSnapshot{}, fmt.Errorf("reset usage mirror: %w", err)
	}
	return session.reset(), nil
}

// ConfigureBank validates and stores a bank document, replacing any previous
// bank for the match and clearing its usage mirror.
func (s *RoundService) ConfigureBank(ctx context.Context, doc domain.BankDocument) (map[int]domain.CategoryStats, error) {
	b, err := s.banks.PutBank(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.usage.Reset(ctx, doc.MatchID); err != nil {
		return nil, fmt.Errorf("reset usage mirror: %w", err)
	}
	return b.UsageStats(), nil
}

// BankStats returns per-category usage counters.
func (s *RoundService) BankStats(ctx context.Context, matchID string) (map[int]domain.CategoryStats, error) {
	b, err := s.banks.GetBank(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return b.UsageStats(), nil
}

// ResetBankUsage clears used flags and the mirror without touching round state.
func (s *RoundService) ResetBankUsage(ctx context.Context, matchID string) error {
	b, err := s.banks.GetBank(ctx, matchID)
	if err != nil {
		return err
	}
	b.ResetUsage()
	return s.usage.Reset(ctx, matchID)
}

// DeleteBank removes the bank, its usage mirror, and the match session.
func (s *RoundService) DeleteBank(ctx context.Context, matchID string) error {
	if err := s.banks.DeleteBank(ctx, matchID); err != nil {
		return err
	}
	if err := s.usage.Reset(ctx, matchID); err != nil {
		return err
	}
	s.sessions.Delete(matchID)
	return nil
}

// committer builds the write-through hook sessions call after each score mutation.
func (s *RoundService) committer(ctx context.Context, matchID string) func(domain.ScoreRecord) error {
	return func(rec domain.ScoreRecord) error {
		return s.scores.Save(ctx, matchID, rec)
	}
}

// clampSeconds converts a deadline into whole seconds remaining, never negative.
func clampSeconds(until time.Duration) int {
	if until <= 0 {
		return 0
	}
	return int((until + time.Second - 1) / time.Second)
}
