package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

// CategoryRepository encapsulates category persistence.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	CountTickets(ctx context.Context, id int64) (int64, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categorySelect = `
        SELECT c.id, c.name, c.description, c.color, c.is_active, c.created_at,
               (SELECT COUNT(*) FROM tickets t WHERE t.category_id = c.id)
        FROM categories c`

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const q = `
        INSERT INTO categories (name, description, color, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx, q,
		category.Name,
		category.Description,
		category.Color,
		category.IsActive,
	).Scan(&category.ID, &category.CreatedAt)
	return translate(err)
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	const q = `
        UPDATE categories SET name=$1, description=$2, color=$3, is_active=$4
        WHERE id=$5`
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, q,
		category.Name,
		category.Description,
		category.Color,
		category.IsActive,
		category.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := persistence.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.fetchSingle(ctx, categorySelect+` WHERE c.id=$1`, id)
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.fetchSingle(ctx, categorySelect+` WHERE c.name=$1`, name)
}

func (r *categoryRepository) fetchSingle(ctx context.Context, q string, arg any) (*domain.Category, error) {
	var category domain.Category
	if err := scanCategory(persistence.Conn(ctx, r.pool).QueryRow(ctx, q, arg), &category); err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	q := categorySelect
	if !includeInactive {
		q += ` WHERE c.is_active`
	}
	q += ` ORDER BY c.name ASC`

	rows, err := persistence.Conn(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		var category domain.Category
		if err := scanCategory(rows, &category); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}

func (r *categoryRepository) CountTickets(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := persistence.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE category_id=$1`, id).Scan(&count)
	return count, err
}

func scanCategory(row pgx.Row, category *domain.Category) error {
	return row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Color,
		&category.IsActive,
		&category.CreatedAt,
		&category.TicketCount,
	)
}
