package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository allows access to bucket persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectBucket = `
SELECT b.name,
       b.owner,
       b.public,
       b.adapter,
       b.created_at,
       b.updated_at,
       COALESCE(u.total_bytes, 0) AS total_bytes,
       COALESCE(u.file_count, 0) AS file_count
FROM buckets b
LEFT JOIN (
    SELECT bucket_name, SUM(size)::BIGINT AS total_bytes, COUNT(*) AS file_count
    FROM file_objects
    WHERE status = 'ready'
    GROUP BY bucket_name
) u ON u.bucket_name = b.name`

// Create inserts a new bucket. A duplicate name yields ErrBucketExists.
func (r *Repository) Create(ctx context.Context, b Bucket) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (name, owner, public, adapter)
VALUES ($1, $2, $3, $4)
RETURNING name, owner, public, adapter, created_at, updated_at;`

	row := r.pool.QueryRow(ctx, query, b.Name, b.Owner, b.Public, string(b.Adapter))

	var created Bucket
	if err := row.Scan(&created.Name, &created.Owner, &created.Public, &created.Adapter, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return Bucket{}, ErrBucketExists
		}
		return Bucket{}, fmt.Errorf("create bucket: %w", err)
	}
	return created, nil
}

// Get fetches a single bucket by name.
func (r *Repository) Get(ctx context.Context, name string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	b, err := scanBucket(r.pool.QueryRow(ctx, selectBucket+` WHERE b.name = $1;`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrBucketNotFound
		}
		return Bucket{}, fmt.Errorf("get bucket: %w", err)
	}
	return b, nil
}

// List returns every bucket ordered by name.
func (r *Repository) List(ctx context.Context) ([]Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, selectBucket+` ORDER BY b.name;`)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return buckets, nil
}

// Delete removes the bucket row; file rows go with it through ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM buckets WHERE name = $1;`, name)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

func scanBucket(row pgx.Row) (Bucket, error) {
	var b Bucket
	err := row.Scan(
		&b.Name,
		&b.Owner,
		&b.Public,
		&b.Adapter,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Usage.TotalBytes,
		&b.Usage.FileCount,
	)
	return b, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
