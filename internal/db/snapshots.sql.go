package db

import "context"

const insertCartSnapshot = `-- name: InsertCartSnapshot :execrows
INSERT INTO cart_snapshots (identifier, instance, content, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (identifier, instance) DO NOTHING
`

type InsertCartSnapshotParams struct {
	Identifier string `json:"identifier"`
	Instance   string `json:"instance"`
	Content    []byte `json:"content"`
}

// InsertCartSnapshot returns the number of inserted rows; zero means the
// identifier is already taken.
func (q *Queries) InsertCartSnapshot(ctx context.Context, arg InsertCartSnapshotParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertCartSnapshot, arg.Identifier, arg.Instance, arg.Content)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getCartSnapshot = `-- name: GetCartSnapshot :one
SELECT identifier, instance, content, created_at, updated_at
FROM cart_snapshots
WHERE identifier = $1 AND instance = $2
`

type CartSnapshotKeyParams struct {
	Identifier string `json:"identifier"`
	Instance   string `json:"instance"`
}

func (q *Queries) GetCartSnapshot(ctx context.Context, arg CartSnapshotKeyParams) (CartSnapshot, error) {
	row := q.db.QueryRow(ctx, getCartSnapshot, arg.Identifier, arg.Instance)
	var i CartSnapshot
	err := row.Scan(
		&i.Identifier,
		&i.Instance,
		&i.Content,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteCartSnapshot = `-- name: DeleteCartSnapshot :exec
DELETE FROM cart_snapshots WHERE identifier = $1 AND instance = $2
`

func (q *Queries) DeleteCartSnapshot(ctx context.Context, arg CartSnapshotKeyParams) error {
	_, err := q.db.Exec(ctx, deleteCartSnapshot, arg.Identifier, arg.Instance)
	return err
}
