package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SetTypePhoto stores the reference photo of a tube type, replacing any previous one.
func SetTypePhoto(ctx context.Context, db *sql.DB, typeName string, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO type_photos (type_name, image, image_mime) VALUES (?, ?, ?)
		 ON CONFLICT (type_name) DO UPDATE
		 SET image = excluded.image, image_mime = excluded.image_mime, updated_at = CURRENT_TIMESTAMP`,
		typeName, image, mime,
	)
	if err != nil {
		return fmt.Errorf("setting type photo: %w", err)
	}
	return nil
}

// GetTypePhoto returns a type's photo and MIME type. Data is nil when the type has no photo.
func GetTypePhoto(ctx context.Context, db *sql.DB, typeName string) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM type_photos WHERE type_name = ?`, typeName,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting type photo: %w", err)
	}
	return image, mime, nil
}

// TypesWithPhoto returns the set of type names that have a photo.
func TypesWithPhoto(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT type_name FROM type_photos`)
	if err != nil {
		return nil, fmt.Errorf("listing type photos: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning type photo: %w", err)
		}
		names[name] = true
	}
	return names, rows.Err()
}
