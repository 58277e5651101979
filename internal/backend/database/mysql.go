package database

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

const createMySQLBulasTable = `CREATE TABLE IF NOT EXISTS bulas (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		nome VARCHAR(255) NOT NULL,
		descricao TEXT NOT NULL,
		efeitos_colaterais TEXT NOT NULL,
		controlado TINYINT(1) NOT NULL DEFAULT 0,
		intervalo_uso VARCHAR(255) NOT NULL,
		imagem_extensao VARCHAR(32) NOT NULL DEFAULT ''
	) CHARACTER SET utf8mb4`

const mysqlHasImageExtensionColumn = `SELECT COUNT(*) FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = 'bulas' AND COLUMN_NAME = 'imagem_extensao'`

type MySQLDatabase struct {
	bulaStatements
	config *mysql.Config
}

// NewMySQLDatabase opens a MySQL database from a go-sql-driver DSN,
// e.g. "user:password@tcp(localhost:3306)/bulas".
func NewMySQLDatabase(connectionString string) (DatabaseService, error) {
	config, err := parseMySQLDSN(connectionString)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	return &MySQLDatabase{
		bulaStatements: bulaStatements{db: sql.OpenDB(connector)},
		config:         config,
	}, nil
}

func parseMySQLDSN(connectionString string) (*mysql.Config, error) {
	config, err := mysql.ParseDSN(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}
	if config.DBName == "" {
		return nil, fmt.Errorf("mysql connection string must name a database")
	}
	// the driver sends leftover Params as SET statements; charset has its own field and defaults to utf8mb4
	return config, nil
}

func (s *MySQLDatabase) CreateDatabase() (*sql.DB, error) {
	if _, err := s.db.Exec(createMySQLBulasTable); err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRow(mysqlHasImageExtensionColumn).Scan(&count); err != nil {
		return nil, err
	}
	if count == 0 {
		if _, err := s.db.Exec(addImageExtensionColumn); err != nil {
			return nil, fmt.Errorf("failed to add imagem_extensao column: %w", err)
		}
	}

	return s.db, nil
}
