package storage

import (
	"context"
)

const createCalculation = `
INSERT INTO calculations (operand1, operand2, result, timestamp)
VALUES (?, ?, ?, ?)
RETURNING id, operand1, operand2, result, timestamp
`

type CreateCalculationParams struct {
	Operand1  float64
	Operand2  float64
	Result    float64
	Timestamp string
}

func (q *Queries) CreateCalculation(ctx context.Context, arg CreateCalculationParams) (Calculation, error) {
	row := q.db.QueryRowContext(ctx, createCalculation, arg.Operand1, arg.Operand2, arg.Result, arg.Timestamp)
	var i Calculation
	err := row.Scan(&i.ID, &i.Operand1, &i.Operand2, &i.Result, &i.Timestamp)
	return i, err
}

const listCalculations = `
SELECT id, operand1, operand2, result, timestamp FROM calculations
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListCalculations(ctx context.Context, limit int64) ([]Calculation, error) {
	rows, err := q.db.QueryContext(ctx, listCalculations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Calculation
	for rows.Next() {
		var i Calculation
		if err := rows.Scan(&i.ID, &i.Operand1, &i.Operand2, &i.Result, &i.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createGreeting = `
INSERT INTO greetings (name, timestamp)
VALUES (?, ?)
RETURNING id, name, timestamp
`

func (q *Queries) CreateGreeting(ctx context.Context, name, timestamp string) (Greeting, error) {
	row := q.db.QueryRowContext(ctx, createGreeting, name, timestamp)
	var i Greeting
	err := row.Scan(&i.ID, &i.Name, &i.Timestamp)
	return i, err
}

const listGreetings = `
SELECT id, name, timestamp FROM greetings
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListGreetings(ctx context.Context, limit int64) ([]Greeting, error) {
	rows, err := q.db.QueryContext(ctx, listGreetings, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Greeting
	for rows.Next() {
		var i Greeting
		if err := rows.Scan(&i.ID, &i.Name, &i.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertUpload = `
INSERT INTO uploads (hash, filename, size_bytes, row_count, dropped_dates, content, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET filename = excluded.filename
RETURNING hash, filename, size_bytes, row_count, dropped_dates, created_at
`

func (q *Queries) UpsertUpload(ctx context.Context, arg Upload) (Upload, error) {
	row := q.db.QueryRowContext(ctx, upsertUpload,
		arg.Hash, arg.Filename, arg.SizeBytes, arg.RowCount, arg.DroppedDates, arg.Content, arg.CreatedAt)
	var i Upload
	err := row.Scan(&i.Hash, &i.Filename, &i.SizeBytes, &i.RowCount, &i.DroppedDates, &i.CreatedAt)
	return i, err
}

const getUpload = `
SELECT hash, filename, size_bytes, row_count, dropped_dates, content, created_at
FROM uploads WHERE hash = ?
`

func (q *Queries) GetUpload(ctx context.Context, hash string) (Upload, error) {
	row := q.db.QueryRowContext(ctx, getUpload, hash)
	var i Upload
	err := row.Scan(&i.Hash, &i.Filename, &i.SizeBytes, &i.RowCount, &i.DroppedDates, &i.Content, &i.CreatedAt)
	return i, err
}

const listUploads = `
SELECT hash, filename, size_bytes, row_count, dropped_dates, created_at
FROM uploads
ORDER BY created_at DESC
LIMIT ?
`

func (q *Queries) ListUploads(ctx context.Context, limit int64) ([]Upload, error) {
	rows, err := q.db.QueryContext(ctx, listUploads, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Upload
	for rows.Next() {
		var i Upload
		if err := rows.Scan(&i.Hash, &i.Filename, &i.SizeBytes, &i.RowCount, &i.DroppedDates, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReportExport = `
INSERT INTO report_exports (upload_hash, quantile_threshold, date_from, date_to, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'pending', ?, ?)
RETURNING id
`

type CreateReportExportParams struct {
	UploadHash        string
	QuantileThreshold float64
	DateFrom          string
	DateTo            string
	Now               string
}

func (q *Queries) CreateReportExport(ctx context.Context, arg CreateReportExportParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createReportExport,
		arg.UploadHash, arg.QuantileThreshold, arg.DateFrom, arg.DateTo, arg.Now, arg.Now)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getReportExport = `
SELECT id, upload_hash, quantile_threshold, date_from, date_to, status, attempts, last_error, sheet_ref, created_at, updated_at
FROM report_exports WHERE id = ?
`

func (q *Queries) GetReportExport(ctx context.Context, id int64) (ReportExport, error) {
	row := q.db.QueryRowContext(ctx, getReportExport, id)
	var i ReportExport
	err := row.Scan(&i.ID, &i.UploadHash, &i.QuantileThreshold, &i.DateFrom, &i.DateTo,
		&i.Status, &i.Attempts, &i.LastError, &i.SheetRef, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getPendingReportExports = `
SELECT id, upload_hash, quantile_threshold, date_from, date_to, status, attempts, last_error, sheet_ref, created_at, updated_at
FROM report_exports
WHERE status = 'pending'
ORDER BY id
LIMIT ?
`

func (q *Queries) GetPendingReportExports(ctx context.Context, limit int64) ([]ReportExport, error) {
	rows, err := q.db.QueryContext(ctx, getPendingReportExports, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReportExport
	for rows.Next() {
		var i ReportExport
		if err := rows.Scan(&i.ID, &i.UploadHash, &i.QuantileThreshold, &i.DateFrom, &i.DateTo,
			&i.Status, &i.Attempts, &i.LastError, &i.SheetRef, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markReportExportDone = `
UPDATE report_exports
SET status = 'done', sheet_ref = ?, last_error = '', attempts = attempts + 1, updated_at = ?
WHERE id = ?
`

func (q *Queries) MarkReportExportDone(ctx context.Context, id int64, sheetRef, now string) error {
	_, err := q.db.ExecContext(ctx, markReportExportDone, sheetRef, now, id)
	return err
}

const markReportExportError = `
UPDATE report_exports
SET attempts = attempts + 1,
    last_error = ?,
    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
    updated_at = ?
WHERE id = ?
`

func (q *Queries) MarkReportExportError(ctx context.Context, id int64, lastError string, maxAttempts int64, now string) error {
	_, err := q.db.ExecContext(ctx, markReportExportError, lastError, maxAttempts, now, id)
	return err
}
