package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const createSQLiteBulasTable = `CREATE TABLE IF NOT EXISTS bulas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL,
		descricao TEXT NOT NULL,
		efeitos_colaterais TEXT NOT NULL DEFAULT '',
		controlado INTEGER NOT NULL DEFAULT 0,
		intervalo_uso TEXT NOT NULL,
		imagem_extensao TEXT NOT NULL DEFAULT ''
	)`

type SQLiteDatabase struct {
	bulaStatements
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" opens its own database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		bulaStatements:   bulaStatements{db: db},
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	if _, err := s.db.Exec(createSQLiteBulasTable); err != nil {
		return nil, err
	}

	// tables created before images were tracked lack the extension column
	hasColumn, err := s.hasColumn("bulas", "imagem_extensao")
	if err != nil {
		return nil, err
	}
	if !hasColumn {
		if _, err := s.db.Exec(addImageExtensionColumn); err != nil {
			return nil, fmt.Errorf("failed to add imagem_extensao column: %w", err)
		}
	}

	return s.db, nil
}

func (s *SQLiteDatabase) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			cid        int
			name       string
			columnType string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &dflt, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
