package store

import (
	"database/sql"
	"errors"
	"time"
)

// TranslationRepository caches translations keyed by language pair and text.
// It satisfies translate.Cache.
type TranslationRepository struct {
	db *sql.DB
}

// Translations returns the translation repository for this store.
func (s *Store) Translations() *TranslationRepository {
	return &TranslationRepository{db: s.db}
}

// GetTranslation returns the cached translation and records the hit.
func (r *TranslationRepository) GetTranslation(source, target, text string) (string, bool, error) {
	var translated string
	err := r.db.QueryRow(
		`SELECT translated_text FROM translations
		 WHERE source_lang = ? AND target_lang = ? AND source_text = ?`,
		source, target, text,
	).Scan(&translated)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	if _, err := r.db.Exec(
		`UPDATE translations SET hits = hits + 1, used_at = ?
		 WHERE source_lang = ? AND target_lang = ? AND source_text = ?`,
		time.Now(), source, target, text,
	); err != nil {
		return "", false, err
	}

	return translated, true, nil
}

// PutTranslation stores or replaces a translation.
func (r *TranslationRepository) PutTranslation(source, target, text, translated string) error {
	now := time.Now()
	_, err := r.db.Exec(
		`INSERT INTO translations (source_lang, target_lang, source_text, translated_text, hits, created_at, used_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(source_lang, target_lang, source_text)
		 DO UPDATE SET translated_text = excluded.translated_text, used_at = excluded.used_at`,
		source, target, text, translated, now, now,
	)
	return err
}

// Hits returns how many times a cached translation was served.
func (r *TranslationRepository) Hits(source, target, text string) (int, error) {
	var hits int
	err := r.db.QueryRow(
		`SELECT hits FROM translations
		 WHERE source_lang = ? AND target_lang = ? AND source_text = ?`,
		source, target, text,
	).Scan(&hits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return hits, nil
}

// Count returns the number of cached translations.
func (r *TranslationRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM translations`).Scan(&n)
	return n, err
}

// Prune removes translations not used since before. It returns the number removed.
func (r *TranslationRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM translations WHERE used_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
