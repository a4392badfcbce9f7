package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Translations table - caches finished translations per language pair
		`CREATE TABLE IF NOT EXISTS translations (
			source_lang TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			source_text TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			used_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source_lang, target_lang, source_text)
		)`,

		// History table - every annotation the pipeline applied
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('object', 'text')),
			anchor_kind TEXT NOT NULL CHECK(anchor_kind IN ('screen', 'world')),
			source_text TEXT NOT NULL,
			source_lang TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_translations_used_at ON translations(used_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
