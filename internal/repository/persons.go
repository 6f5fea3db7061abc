package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightpass/internal/database"
	"nightpass/internal/models"
)

type PersonRepository struct {
	db *database.DB
}

func NewPersonRepository(db *database.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = `id, document_type, document_number, first_name, last_name,
	to_char(birthdate, 'YYYY-MM-DD'), email, phone, source, created_at, updated_at`

func scanPerson(s scanner, p *models.Person) error {
	return s.Scan(&p.ID, &p.DocumentType, &p.DocumentNumber, &p.FirstName, &p.LastName,
		&p.Birthdate, &p.Email, &p.Phone, &p.Source, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PersonRepository) GetByDocument(ctx context.Context, docType, number string) (*models.Person, error) {
	p := &models.Person{}
	query := `SELECT ` + personColumns + ` FROM persons WHERE document_type = $1 AND document_number = $2`

	err := scanPerson(r.db.QueryRowContext(ctx, query, docType, number), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert inserts the person or refreshes the names of an existing document.
// Contact fields already on file are kept when the new value is empty.
func (r *PersonRepository) Upsert(ctx context.Context, p *models.Person) error {
	query := `
		INSERT INTO persons (document_type, document_number, first_name, last_name, birthdate, email, phone, source)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
		ON CONFLICT (document_type, document_number) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birthdate = COALESCE(EXCLUDED.birthdate, persons.birthdate),
			email = COALESCE(EXCLUDED.email, persons.email),
			phone = COALESCE(EXCLUDED.phone, persons.phone),
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		p.DocumentType,
		p.DocumentNumber,
		p.FirstName,
		p.LastName,
		p.Birthdate,
		p.Email,
		p.Phone,
		p.Source,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PersonRepository) List(ctx context.Context, f models.PersonFilter) ([]models.Person, int, error) {
	w := newWhere()
	if f.Query != "" {
		pattern := likePattern(f.Query)
		w.args = append(w.args, pattern)
		n := len(w.args)
		w.conds = append(w.conds, fmt.Sprintf(
			"(document_number LIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count persons: %w", err)
	}

	query := `SELECT ` + personColumns + ` FROM persons ` + w.sql() + ` ORDER BY last_name, first_name`
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(f.PageSize), w.next(f.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Person
	for rows.Next() {
		var p models.Person
		if err := scanPerson(rows, &p); err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}
