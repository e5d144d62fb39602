package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Trusslab/internal/calc/truss"

	"github.com/google/uuid"
)

// Design is a saved calculation case owned by one user. StrainEnergy and
// Volume summarize the last result the client saw; Input is enough to rerun it.
type Design struct {
	ID           string      `json:"id"`
	UserID       int         `json:"-"`
	Name         string      `json:"name"`
	Input        truss.Input `json:"input"`
	StrainEnergy float64     `json:"strain_energy"`
	Volume       float64     `json:"volume"`
	CreatedAt    time.Time   `json:"created_at"`
}

type DesignRepository interface {
	SaveDesign(ctx context.Context, d *Design) error
	GetDesign(ctx context.Context, userID int, id string) (Design, error)
	ListDesigns(ctx context.Context, userID int) ([]Design, error)
	DeleteDesign(ctx context.Context, userID int, id string) error
}

type PostgresDesignRepository struct {
	db *sql.DB
}

func NewPostgresDesignDB(db *sql.DB) *PostgresDesignRepository {
	return &PostgresDesignRepository{db: db}
}

// SaveDesign inserts d, or replaces it when d.ID already belongs to the same
// user. An empty ID gets a fresh UUID.
func (r *PostgresDesignRepository) SaveDesign(ctx context.Context, d *Design) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	} else if _, err := uuid.Parse(d.ID); err != nil {
		return fmt.Errorf("%w: design id %q", ErrNotFound, d.ID)
	}
	payload, err := json.Marshal(d.Input)
	if err != nil {
		return fmt.Errorf("repo: encode design input: %w", err)
	}
	query := `INSERT INTO designs (id, user_id, name, input, strain_energy, volume)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, input=EXCLUDED.input,
			strain_energy=EXCLUDED.strain_energy, volume=EXCLUDED.volume
		WHERE designs.user_id=EXCLUDED.user_id
		RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, d.ID, d.UserID, d.Name, payload, d.StrainEnergy, d.Volume).Scan(&d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// id exists under another user
		return fmt.Errorf("%w: design %s", ErrNotFound, d.ID)
	}
	return err
}

func (r *PostgresDesignRepository) GetDesign(ctx context.Context, userID int, id string) (Design, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Design{}, fmt.Errorf("%w: design id %q", ErrNotFound, id)
	}
	query := "SELECT id, user_id, name, input, strain_energy, volume, created_at FROM designs WHERE id=$1 AND user_id=$2"
	d, err := scanDesign(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Design{}, fmt.Errorf("%w: design %s", ErrNotFound, id)
	}
	return d, err
}

func (r *PostgresDesignRepository) ListDesigns(ctx context.Context, userID int) ([]Design, error) {
	query := "SELECT id, user_id, name, input, strain_energy, volume, created_at FROM designs WHERE user_id=$1 ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Design
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresDesignRepository) DeleteDesign(ctx context.Context, userID int, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: design id %q", ErrNotFound, id)
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM designs WHERE id=$1 AND user_id=$2", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: design %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDesign(s scanner) (Design, error) {
	var d Design
	var payload []byte
	if err := s.Scan(&d.ID, &d.UserID, &d.Name, &payload, &d.StrainEnergy, &d.Volume, &d.CreatedAt); err != nil {
		return Design{}, err
	}
	if err := json.Unmarshal(payload, &d.Input); err != nil {
		return Design{}, fmt.Errorf("repo: decode design %s: %w", d.ID, err)
	}
	return d, nil
}
