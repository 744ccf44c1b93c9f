package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// UploadStorage handles storage of processed report uploads.
type UploadStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewUploadStorage creates a new SQLite upload storage.
func NewUploadStorage(db *sql.DB, log *logger.Logger) (*UploadStorage, error) {
	storage := &UploadStorage{
		db:     db,
		logger: log.Named("sqlite-uploads"),
	}
	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables.
func (s *UploadStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			format TEXT NOT NULL,
			total_routes INTEGER NOT NULL,
			total_deliveries INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create uploads table: %w", err)
	}

	_, err = s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create uploads index: %w", err)
	}
	return nil
}

// SaveUpload stores a processed upload and returns its assigned ID.
func (s *UploadStorage) SaveUpload(fileName, format, payload string, totalRoutes, totalDeliveries int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO uploads
		(id, file_name, format, total_routes, total_deliveries, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		fileName,
		format,
		totalRoutes,
		totalDeliveries,
		time.Now().UTC().Format(time.RFC3339),
		payload,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert upload: %w", err)
	}

	s.logger.Info("Stored upload",
		logger.String("id", id),
		logger.String("file_name", fileName),
		logger.Int("routes", totalRoutes))
	return id, nil
}

// GetUploads returns summaries of all uploads, newest first.
func (s *UploadStorage) GetUploads() ([]*UploadSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, file_name, format, total_routes, total_deliveries, created_at
		FROM uploads
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var summaries []*UploadSummary
	for rows.Next() {
		var sum UploadSummary
		var createdAt string
		if err := rows.Scan(
			&sum.ID,
			&sum.FileName,
			&sum.Format,
			&sum.TotalRoutes,
			&sum.TotalDeliveries,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		sum.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// GetUpload returns a full upload record, or nil when the ID is unknown.
func (s *UploadStorage) GetUpload(id string) (*UploadRecord, error) {
	var record UploadRecord
	var createdAt string
	err := s.db.QueryRow(
		`SELECT id, file_name, format, total_routes, total_deliveries, created_at, payload
		FROM uploads
		WHERE id = ?`, id,
	).Scan(
		&record.ID,
		&record.FileName,
		&record.Format,
		&record.TotalRoutes,
		&record.TotalDeliveries,
		&createdAt,
		&record.Payload,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}

	record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &record, nil
}

// DeleteUpload removes an upload. Returns false when the ID was unknown.
func (s *UploadStorage) DeleteUpload(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete upload: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
