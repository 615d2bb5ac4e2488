package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/flyaway/pkg/models"
)

const fileColumns = `id, path, original_name, content_type, owner_type, owner_id, created`

func (r *SQLiteRepo) CreateFile(ctx context.Context, f *models.FileRecord) (int64, error) {
	if f == nil {
		return 0, fmt.Errorf("file record is nil")
	}
	if f.Created == 0 {
		f.Created = now()
	}

	res, err := r.q.ExecContext(ctx, `INSERT INTO file_records (path, original_name, content_type, owner_type, owner_id, created) VALUES (?, ?, ?, ?, ?, ?)`,
		f.Path, f.OriginalName, f.ContentType, f.OwnerType, f.OwnerID, f.Created)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) ListFiles(ctx context.Context, ownerType string, ownerID int64) ([]models.FileRecord, error) {
	byOwner, err := r.filesFor(ctx, ownerType, []int64{ownerID})
	if err != nil {
		return nil, err
	}
	return byOwner[ownerID], nil
}

func (r *SQLiteRepo) DeleteFiles(ctx context.Context, ownerType string, ownerID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM file_records WHERE owner_type = ? AND owner_id = ?`, ownerType, ownerID)
	return err
}

// filesFor loads file records of many owners of one type, oldest first.
func (r *SQLiteRepo) filesFor(ctx context.Context, ownerType string, ownerIDs []int64) (map[int64][]models.FileRecord, error) {
	out := make(map[int64][]models.FileRecord, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	marks, ids := placeholders(ownerIDs)
	args := append([]any{ownerType}, ids...)
	rows, err := r.q.QueryContext(ctx, `SELECT `+fileColumns+` FROM file_records WHERE owner_type = ? AND owner_id IN (`+marks+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.ID, &f.Path, &f.OriginalName, &f.ContentType, &f.OwnerType, &f.OwnerID, &f.Created); err != nil {
			return nil, err
		}
		out[f.OwnerID] = append(out[f.OwnerID], f)
	}
	return out, rows.Err()
}
