package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is used by List when no positive limit is given.
const DefaultHistoryLimit = 50

// HistoryEntry is one annotation applied by the pipeline.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	AnchorKind     string    `json:"anchor_kind"`
	SourceText     string    `json:"source_text"`
	SourceLang     string    `json:"source_lang"`
	TranslatedText string    `json:"translated_text"`
	TargetLang     string    `json:"target_lang"`
	Degraded       bool      `json:"degraded"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryRepository records applied annotations.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Add inserts an entry. ID and CreatedAt are filled in when empty.
func (r *HistoryRepository) Add(e *HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO history (id, mode, anchor_kind, source_text, source_lang, translated_text, target_lang, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Mode, e.AnchorKind, e.SourceText, e.SourceLang, e.TranslatedText, e.TargetLang, e.Degraded, e.CreatedAt,
	)
	return err
}

// List returns the most recent entries, newest first.
func (r *HistoryRepository) List(limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.Query(
		`SELECT id, mode, anchor_kind, source_text, source_lang, translated_text, target_lang, degraded, created_at
		 FROM history ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*HistoryEntry, 0)
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.Mode, &e.AnchorKind, &e.SourceText, &e.SourceLang,
			&e.TranslatedText, &e.TargetLang, &e.Degraded, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of history entries.
func (r *HistoryRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n)
	return n, err
}

// Clear removes every entry.
func (r *HistoryRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM history`)
	return err
}
