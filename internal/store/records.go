package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"scoreintake/internal/model"
)

// RecordFilter 成绩记录查询条件
type RecordFilter struct {
	ExamTitle string
	ClassName string
	StudentID string
	Limit     int
}

// SaveRecords 批量写入（同一考试同一学生覆盖旧记录），返回写入条数
func (s *Store) SaveRecords(ctx context.Context, importID string, records []*model.CanonicalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exam_records (
			import_id, exam_title, exam_type, exam_date, exam_scope, grade_level,
			student_key, student_id, name, class_name,
			subjects, total_score, total_grade, rank_in_class, rank_in_grade, rank_in_school,
			source_rows
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (exam_title, exam_type, exam_date, student_key) DO UPDATE SET
			import_id = excluded.import_id,
			exam_scope = excluded.exam_scope,
			grade_level = excluded.grade_level,
			student_id = excluded.student_id,
			name = excluded.name,
			class_name = excluded.class_name,
			subjects = excluded.subjects,
			total_score = excluded.total_score,
			total_grade = excluded.total_grade,
			rank_in_class = excluded.rank_in_class,
			rank_in_grade = excluded.rank_in_grade,
			rank_in_school = excluded.rank_in_school,
			source_rows = excluded.source_rows,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, r := range records {
		key := r.Identity()
		if key == "" {
			continue
		}
		subjects, err := json.Marshal(r.Subjects)
		if err != nil {
			return 0, fmt.Errorf("failed to encode subjects for %s: %w", r.Ref, err)
		}
		sourceRows, err := json.Marshal(r.SourceRows)
		if err != nil {
			return 0, fmt.Errorf("failed to encode source rows for %s: %w", r.Ref, err)
		}

		if _, err := stmt.ExecContext(ctx,
			importID, r.Exam.Title, r.Exam.Type, r.Exam.Date, r.Exam.Scope, r.Exam.GradeLevel,
			key, r.StudentID, r.Name, r.ClassName,
			string(subjects), nullFloat(r.TotalScore), r.TotalGrade,
			nullInt(r.RankInClass), nullInt(r.RankInGrade), nullInt(r.RankInSchool),
			string(sourceRows),
		); err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", r.Ref, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

// ListRecords 查询成绩记录
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]*model.CanonicalRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.ExamTitle != "" {
		where = append(where, "exam_title = ?")
		args = append(args, f.ExamTitle)
	}
	if f.ClassName != "" {
		where = append(where, "class_name = ?")
		args = append(args, f.ClassName)
	}
	if f.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, f.StudentID)
	}

	query := `
		SELECT exam_title, exam_type, exam_date, exam_scope, grade_level,
			student_id, name, class_name,
			subjects, total_score, total_grade, rank_in_class, rank_in_grade, rank_in_school,
			source_rows
		FROM exam_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY exam_date, exam_title, class_name, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*model.CanonicalRecord
	for rows.Next() {
		var (
			r                   model.CanonicalRecord
			subjects, srcRows   string
			total               sql.NullFloat64
			rankC, rankG, rankS sql.NullInt64
		)
		if err := rows.Scan(
			&r.Exam.Title, &r.Exam.Type, &r.Exam.Date, &r.Exam.Scope, &r.Exam.GradeLevel,
			&r.StudentID, &r.Name, &r.ClassName,
			&subjects, &total, &r.TotalGrade, &rankC, &rankG, &rankS,
			&srcRows,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(subjects), &r.Subjects); err != nil {
			return nil, fmt.Errorf("failed to decode subjects: %w", err)
		}
		if err := json.Unmarshal([]byte(srcRows), &r.SourceRows); err != nil {
			return nil, fmt.Errorf("failed to decode source rows: %w", err)
		}
		if total.Valid {
			r.TotalScore = model.Float(total.Float64)
		}
		r.RankInClass = intPtr(rankC)
		r.RankInGrade = intPtr(rankG)
		r.RankInSchool = intPtr(rankS)
		r.Ref = "student:" + r.Identity()
		out = append(out, &r)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return model.Int(int(v.Int64))
}
