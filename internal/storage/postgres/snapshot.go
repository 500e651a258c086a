package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterExists is returned when attempting to create a duplicate
// character name.
var ErrCharacterExists = errors.New("character already exists")

// SnapshotRepository persists entity snapshots as jsonb, one row per
// character, bound to an owning account. It satisfies the server's
// CharacterStore and the round engine's Saver.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new character owned by the given account.
//
// Postcondition: Returns ErrAccountNotFound if the account doesn't
// exist, or ErrCharacterExists if the name is taken.
func (r *SnapshotRepository) Create(ctx context.Context, username string, snap entity.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO characters (account_id, name, snapshot)
		 SELECT id, $2, $3 FROM accounts WHERE username = $1`,
		username, snap.SaveName, data,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrCharacterExists
		}
		return fmt.Errorf("inserting character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Save overwrites the stored snapshot for an existing character.
//
// Postcondition: Returns ErrCharacterNotFound if the character was
// never created.
func (r *SnapshotRepository) Save(ctx context.Context, snap entity.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE characters SET snapshot = $2, updated_at = now() WHERE name = $1`,
		snap.SaveName, data,
	)
	if err != nil {
		return fmt.Errorf("updating character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// Load retrieves a character's snapshot by name.
//
// Postcondition: Returns the snapshot or ErrCharacterNotFound.
func (r *SnapshotRepository) Load(ctx context.Context, name string) (entity.Snapshot, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT snapshot FROM characters WHERE name = $1`,
		name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.Snapshot{}, ErrCharacterNotFound
		}
		return entity.Snapshot{}, fmt.Errorf("querying character: %w", err)
	}

	var snap entity.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return entity.Snapshot{}, fmt.Errorf("unmarshalling snapshot %q: %w", name, err)
	}
	return snap, nil
}

// List returns the character names bound to an account, sorted by name.
func (r *SnapshotRepository) List(ctx context.Context, username string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.name FROM characters c
		 JOIN accounts a ON a.id = c.account_id
		 WHERE a.username = $1
		 ORDER BY c.name`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning character name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
