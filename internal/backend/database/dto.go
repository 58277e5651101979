package database

// Bula mirrors a row of the bulas table.
type Bula struct {
	ID                int64  `db:"id"`
	Nome              string `db:"nome"`
	Descricao         string `db:"descricao"`
	EfeitosColaterais string `db:"efeitos_colaterais"` // comma-joined side effects
	Controlado        int    `db:"controlado"`         // 0 or 1
	IntervaloUso      string `db:"intervalo_uso"`
	ImagemExtensao    string `db:"imagem_extensao"` // empty when the row has no known image
}
