package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Calculation struct {
	ID        int64
	Operand1  float64
	Operand2  float64
	Result    float64
	Timestamp string
}

type Greeting struct {
	ID        int64
	Name      string
	Timestamp string
}

type Upload struct {
	Hash         string
	Filename     string
	SizeBytes    int64
	RowCount     int64
	DroppedDates int64
	Content      []byte
	CreatedAt    string
}

type ReportExport struct {
	ID                int64
	UploadHash        string
	QuantileThreshold float64
	DateFrom          string
	DateTo            string
	Status            string
	Attempts          int64
	LastError         string
	SheetRef          string
	CreatedAt         string
	UpdatedAt         string
}
