package database

import (
	"context"
	"database/sql"
	"errors"
)

// Both dialects accept '?' placeholders, so the row operations are shared.
const (
	insertBulaQuery = `INSERT INTO bulas (nome, descricao, efeitos_colaterais, controlado, intervalo_uso, imagem_extensao)
		VALUES (?, ?, ?, ?, ?, ?)`
	selectBulaColumns = `SELECT id, nome, descricao, COALESCE(efeitos_colaterais, ''), controlado, intervalo_uso,
		COALESCE(imagem_extensao, '') FROM bulas`
	updateBulaQuery = `UPDATE bulas SET nome = ?, descricao = ?, efeitos_colaterais = ?, controlado = ?, intervalo_uso = ?
		WHERE id = ?`
	deleteBulaQuery         = "DELETE FROM bulas WHERE id = ?"
	setImageExtensionQuery  = "UPDATE bulas SET imagem_extensao = ? WHERE id = ?"
	addImageExtensionColumn = "ALTER TABLE bulas ADD COLUMN imagem_extensao VARCHAR(32) NOT NULL DEFAULT ''"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// bulaStatements implements the row operations of DatabaseService on top of a *sql.DB.
type bulaStatements struct {
	db *sql.DB
}

func scanBula(row rowScanner) (*Bula, error) {
	var bula Bula
	var controlado sql.NullInt64
	if err := row.Scan(
		&bula.ID,
		&bula.Nome,
		&bula.Descricao,
		&bula.EfeitosColaterais,
		&controlado,
		&bula.IntervaloUso,
		&bula.ImagemExtensao,
	); err != nil {
		return nil, err
	}
	bula.Controlado = int(controlado.Int64)
	return &bula, nil
}

func (s *bulaStatements) CreateBula(ctx context.Context, bula *Bula) (int64, error) {
	result, err := s.db.ExecContext(ctx, insertBulaQuery,
		bula.Nome, bula.Descricao, bula.EfeitosColaterais, bula.Controlado, bula.IntervaloUso, bula.ImagemExtensao)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *bulaStatements) GetBulaByID(ctx context.Context, id int64) (*Bula, error) {
	row := s.db.QueryRowContext(ctx, selectBulaColumns+" WHERE id = ?", id)
	bula, err := scanBula(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bula, nil
}

func (s *bulaStatements) GetAllBulas(ctx context.Context) ([]*Bula, error) {
	rows, err := s.db.QueryContext(ctx, selectBulaColumns+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	bulas := make([]*Bula, 0)
	for rows.Next() {
		bula, err := scanBula(rows)
		if err != nil {
			return nil, err
		}
		bulas = append(bulas, bula)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bulas, nil
}

func (s *bulaStatements) UpdateBula(ctx context.Context, bula *Bula) error {
	_, err := s.db.ExecContext(ctx, updateBulaQuery,
		bula.Nome, bula.Descricao, bula.EfeitosColaterais, bula.Controlado, bula.IntervaloUso, bula.ID)
	return err
}

func (s *bulaStatements) DeleteBula(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, deleteBulaQuery, id)
	return err
}

func (s *bulaStatements) SetImageExtension(ctx context.Context, id int64, extension string) error {
	_, err := s.db.ExecContext(ctx, setImageExtensionQuery, extension, id)
	return err
}

func (s *bulaStatements) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *bulaStatements) DoesDatabaseExist() bool {
	err := s.db.Ping()
	return err == nil
}
