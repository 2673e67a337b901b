package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/objectd/internal/bucket"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

// Repository persists object metadata in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a file metadata repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectObject = `
SELECT f.id,
       f.bucket_name,
       f.key,
       f.size,
       f.mime_type,
       f.public,
       f.parent_id,
       f.status,
       f.created_at,
       f.updated_at,
       COALESCE(p.public, FALSE) AS parent_public
FROM file_objects f
LEFT JOIN file_objects p ON p.id = f.parent_id`

// Reserve inserts a pending row for obj.
func (r *Repository) Reserve(ctx context.Context, obj FileObject) (FileObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO file_objects (id, bucket_name, key, size, mime_type, public, parent_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending');`

	if _, err := r.pool.Exec(ctx, query, obj.ID, obj.BucketName, obj.Key, obj.Size, obj.MimeType, obj.Public, obj.ParentID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505":
				return FileObject{}, ErrObjectConflict
			case pgErr.Code == "23503" && pgErr.ConstraintName == "file_objects_parent_id_fkey":
				return FileObject{}, ErrParentNotFound
			case pgErr.Code == "23503":
				return FileObject{}, bucket.ErrBucketNotFound
			}
		}
		return FileObject{}, fmt.Errorf("reserve object: %w", err)
	}
	return r.GetByID(ctx, obj.ID)
}

// Confirm marks a pending row ready and records the bytes written.
func (r *Repository) Confirm(ctx context.Context, id string, size int64) (FileObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, `
UPDATE file_objects
SET status = 'ready', size = $2, updated_at = NOW()
WHERE id = $1 AND status = 'pending';`, id, size)
	if err != nil {
		return FileObject{}, fmt.Errorf("confirm object: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return FileObject{}, ErrObjectNotFound
	}
	return r.GetByID(ctx, id)
}

// GetByID returns the object with id regardless of its status.
func (r *Repository) GetByID(ctx context.Context, id string) (FileObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	obj, err := scanObject(r.pool.QueryRow(ctx, selectObject+` WHERE f.id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileObject{}, ErrObjectNotFound
		}
		return FileObject{}, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// GetByKey returns the ready object stored under bucketName/key.
func (r *Repository) GetByKey(ctx context.Context, bucketName, key string) (FileObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	obj, err := scanObject(r.pool.QueryRow(ctx,
		selectObject+` WHERE f.bucket_name = $1 AND f.key = $2 AND f.status = 'ready';`, bucketName, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileObject{}, ErrObjectNotFound
		}
		return FileObject{}, fmt.Errorf("get object by key: %w", err)
	}
	return obj, nil
}

// Children returns every row whose parent is parentID, pending rows included.
func (r *Repository) Children(ctx context.Context, parentID string) ([]FileObject, error) {
	return r.list(ctx, selectObject+` WHERE f.parent_id = $1 ORDER BY f.key, f.id;`, parentID)
}

// ListByPrefix returns ready objects of a bucket whose key starts with prefix.
func (r *Repository) ListByPrefix(ctx context.Context, bucketName, prefix string) ([]FileObject, error) {
	return r.list(ctx, selectObject+`
WHERE f.bucket_name = $1 AND f.status = 'ready' AND starts_with(f.key, $2)
ORDER BY f.key, f.id;`, bucketName, prefix)
}

// ListPendingBefore returns pending rows created before cutoff.
func (r *Repository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]FileObject, error) {
	return r.list(ctx, selectObject+`
WHERE f.status = 'pending' AND f.created_at < $1
ORDER BY f.created_at;`, cutoff)
}

// DeleteMany removes the rows with the given ids and reports how many went away.
func (r *Repository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM file_objects WHERE id = ANY($1);`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete objects: %w", err)
	}
	return commandTag.RowsAffected(), nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]FileObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []FileObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objects, nil
}

func scanObject(row pgx.Row) (FileObject, error) {
	var obj FileObject
	err := row.Scan(
		&obj.ID,
		&obj.BucketName,
		&obj.Key,
		&obj.Size,
		&obj.MimeType,
		&obj.Public,
		&obj.ParentID,
		&obj.Status,
		&obj.CreatedAt,
		&obj.UpdatedAt,
		&obj.ParentPublic,
	)
	return obj, err
}
