package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// ErrTrainerNotFound is returned when no row exists for a user id. It
// matches trainer.ErrNotFound under errors.Is.
var ErrTrainerNotFound = fmt.Errorf("postgres: %w", trainer.ErrNotFound)

var (
	_ trainer.Store = (*TrainerRepository)(nil)
	_ safari.Store  = (*TrainerRepository)(nil)
)

// TrainerRepository stores one JSONB document per user. Username and the
// kill flag are mirrored into columns for lookups.
type TrainerRepository struct {
	db *pgxpool.Pool
}

// NewTrainerRepository creates a TrainerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewTrainerRepository(db *pgxpool.Pool) *TrainerRepository {
	return &TrainerRepository{db: db}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanTrainer(row pgx.Row) (*trainer.Trainer, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrainerNotFound
		}
		return nil, fmt.Errorf("loading trainer: %w", err)
	}
	var t trainer.Trainer
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decoding trainer: %w", err)
	}
	return &t, nil
}

func load(ctx context.Context, q querier, id int64, lock bool) (*trainer.Trainer, error) {
	sql := `SELECT doc FROM trainers WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	return scanTrainer(q.QueryRow(ctx, sql, id))
}

func save(ctx context.Context, tx pgx.Tx, t *trainer.Trainer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("trainer %d: %w", t.ID, err)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trainer: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE trainers
		SET doc = $2, username = $3, killed = $4, updated_at = NOW()
		WHERE id = $1`,
		t.ID, raw, t.Username, t.Killed,
	)
	if err != nil {
		return fmt.Errorf("saving trainer %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTrainerNotFound
	}
	return nil
}

// Load returns the document for id.
//
// Postcondition: Returns ErrTrainerNotFound when no row exists.
func (r *TrainerRepository) Load(ctx context.Context, id int64) (*trainer.Trainer, error) {
	return load(ctx, r.db, id, false)
}

// Create inserts t unless a row for t.ID exists, in which case the stored
// document is returned unchanged.
func (r *TrainerRepository) Create(ctx context.Context, t *trainer.Trainer) (*trainer.Trainer, bool, error) {
	if err := t.Validate(); err != nil {
		return nil, false, fmt.Errorf("trainer %d: %w", t.ID, err)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, false, fmt.Errorf("encoding trainer: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO trainers (id, username, killed, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Username, t.Killed, raw,
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating trainer %d: %w", t.ID, err)
	}
	stored, err := r.Load(ctx, t.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
//
// Postcondition: Nothing is written when fn or document validation fails.
func (r *TrainerRepository) Update(ctx context.Context, id int64, fn func(*trainer.Trainer) error) (*trainer.Trainer, error) {
	var out *trainer.Trainer
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		t, err := load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := save(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// UpdatePair locks both rows in ascending id order, applies fn and writes
// both documents or neither.
//
// Precondition: a != b.
func (r *TrainerRepository) UpdatePair(ctx context.Context, a, b int64, fn func(a, b *trainer.Trainer) error) error {
	if a == b {
		return fmt.Errorf("update pair: ids must differ (%d)", a)
	}
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		first, second := a, b
		if second < first {
			first, second = second, first
		}
		docs := make(map[int64]*trainer.Trainer, 2)
		for _, id := range []int64{first, second} {
			t, err := load(ctx, tx, id, true)
			if err != nil {
				return err
			}
			docs[id] = t
		}
		if err := fn(docs[a], docs[b]); err != nil {
			return err
		}
		if err := save(ctx, tx, docs[a]); err != nil {
			return err
		}
		return save(ctx, tx, docs[b])
	})
}

// IsKilled reports the kill flag from its column; unknown users are not killed.
func (r *TrainerRepository) IsKilled(ctx context.Context, id int64) (bool, error) {
	var killed bool
	err := r.db.QueryRow(ctx, `SELECT killed FROM trainers WHERE id = $1`, id).Scan(&killed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("reading kill flag: %w", err)
	}
	return killed, nil
}

// SaveSafariSession upserts a safari session.
func (r *TrainerRepository) SaveSafariSession(ctx context.Context, s *safari.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding safari session: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO safari_sessions (user_id, doc)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		s.UserID, raw,
	)
	if err != nil {
		return fmt.Errorf("saving safari session %d: %w", s.UserID, err)
	}
	return nil
}

// DeleteSafariSession removes a safari session; missing sessions are ignored.
func (r *TrainerRepository) DeleteSafariSession(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM safari_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting safari session %d: %w", userID, err)
	}
	return nil
}

// LoadSafariSessions returns every stored session ordered by user id.
func (r *TrainerRepository) LoadSafariSessions(ctx context.Context) ([]*safari.Session, error) {
	rows, err := r.db.Query(ctx, `SELECT doc FROM safari_sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("loading safari sessions: %w", err)
	}
	defer rows.Close()

	var out []*safari.Session
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning safari session: %w", err)
		}
		var s safari.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding safari session: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating safari sessions: %w", err)
	}
	return out, nil
}
