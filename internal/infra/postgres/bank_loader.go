package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/giangittb112000/olympia-sub001/internal/domain"
)

// BankLoader loads question bank JSONB documents from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context, matchID string) (domain.BankDocument, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE match_id=$1`, matchID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BankDocument{}, domain.ErrBankNotFound
	}
	if err != nil {
		return domain.BankDocument{}, fmt.Errorf("load bank: %w", err)
	}
	var doc domain.BankDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.BankDocument{}, fmt.Errorf("unmarshal bank: %w", err)
	}
	doc.MatchID = matchID
	return doc, nil
}
