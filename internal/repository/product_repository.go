package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// ProductFilter captures listing parameters.
type ProductFilter struct {
	Category *string
	Featured *bool
	Limit    int
	Offset   int
}

// ProductRepository encapsulates shop product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListActive(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	Deactivate(ctx context.Context, id string) error
	// DeductStock subtracts qty from available stock, flooring at zero, and
	// returns the remaining quantity. The floor lives in SQL so racing
	// settles can never drive stock negative.
	DeductStock(ctx context.Context, id string, qty int) (int, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository instantiates repository.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

const productColumns = `id, title, description, category, thumbnail, price,
	quantity, featured, active, author_id, created_at, updated_at`

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (title, description, category, thumbnail, price, quantity, featured, author_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, active, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		product.Title,
		product.Description,
		product.Category,
		product.Thumbnail,
		product.Price,
		product.Quantity,
		product.Featured,
		product.AuthorID,
	).Scan(&product.ID, &product.Active, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	const query = `
        UPDATE products SET title=$1, description=$2, category=$3, thumbnail=$4,
            price=$5, quantity=$6, featured=$7, active=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		product.Title,
		product.Description,
		product.Category,
		product.Thumbnail,
		product.Price,
		product.Quantity,
		product.Featured,
		product.Active,
		product.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Category,
		&product.Thumbnail,
		&product.Price,
		&product.Quantity,
		&product.Featured,
		&product.Active,
		&product.AuthorID,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListActive(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error) {
	clauses := []string{"active = TRUE"}
	args := []any{}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		clauses = append(clauses, fmt.Sprintf("featured=$%d", len(args)))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 12
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s
        ORDER BY featured DESC, created_at DESC LIMIT %d OFFSET %d`,
		productColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID,
			&product.Title,
			&product.Description,
			&product.Category,
			&product.Thumbnail,
			&product.Price,
			&product.Quantity,
			&product.Featured,
			&product.Active,
			&product.AuthorID,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, product)
	}
	return result, total, rows.Err()
}

func (r *productRepository) Deactivate(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE products SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepository) DeductStock(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET quantity=GREATEST(quantity-$1, 0), updated_at=NOW()
         WHERE id=$2 RETURNING quantity`, qty, id).Scan(&remaining)
	return remaining, err
}
