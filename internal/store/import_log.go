package store

import (
	"context"
	"fmt"
	"time"
)

// 导入日志状态
const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusRejected   = "rejected"
	ImportStatusFailed     = "failed"
)

// ImportLog 导入日志
type ImportLog struct {
	ID           int64      `json:"id"`
	ImportID     string     `json:"importId"`
	Filename     string     `json:"filename"`
	FileKind     string     `json:"fileKind"`
	Structure    string     `json:"structure"`
	Strategy     string     `json:"strategy"`
	Confidence   float64    `json:"confidence"`
	TotalRows    int        `json:"totalRows"`
	ImportedRows int        `json:"importedRows"`
	DroppedRows  int        `json:"droppedRows"`
	QualityScore int        `json:"qualityScore"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// CreateImportLog 创建导入日志，返回自增 ID
func (s *Store) CreateImportLog(ctx context.Context, log *ImportLog) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (
			import_id, filename, file_kind, structure, strategy, confidence,
			total_rows, dropped_rows, quality_score, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ImportID, log.Filename, log.FileKind, log.Structure, log.Strategy, log.Confidence,
		log.TotalRows, log.DroppedRows, log.QualityScore, ImportStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// UpdateImportLog 完成导入日志更新
func (s *Store) UpdateImportLog(ctx context.Context, importID string, importedRows int, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_logs SET
			imported_rows = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE import_id = ?
	`, importedRows, status, errorMessage, importID)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

// ListImportLogs 按时间倒序列出导入日志
func (s *Store) ListImportLogs(ctx context.Context, limit int) ([]*ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, import_id, filename, file_kind, structure, strategy, confidence,
			total_rows, imported_rows, dropped_rows, quality_score, status, error_message,
			created_at, completed_at
		FROM import_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import logs: %w", err)
	}
	defer rows.Close()

	var logs []*ImportLog
	for rows.Next() {
		l := &ImportLog{}
		if err := rows.Scan(
			&l.ID, &l.ImportID, &l.Filename, &l.FileKind, &l.Structure, &l.Strategy, &l.Confidence,
			&l.TotalRows, &l.ImportedRows, &l.DroppedRows, &l.QualityScore, &l.Status, &l.ErrorMessage,
			&l.CreatedAt, &l.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
