package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleViews() []domain.TransactionView {
	day := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	return []domain.TransactionView{
		{
			Transaction: &domain.Transaction{ID: "t2", Date: day, Amount: decimal.RequireFromString("42.5"), Type: domain.TransactionTypeExpense, Category: "Food", Description: "lunch, with team"},
			AccountName: "Main",
			AccountType: domain.AccountTypeChecking,
		},
		{
			Transaction: &domain.Transaction{ID: "t1", Date: day.AddDate(0, 0, -1), Amount: decimal.RequireFromString("1000"), Type: domain.TransactionTypeIncome, Category: "Salary"},
			AccountName: "Main",
			AccountType: domain.AccountTypeChecking,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleViews()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"2024-02-10", "Main", "Checking", "Expense", "Food", "lunch, with team", "42.50", "-42.50"}, rows[1])
	assert.Equal(t, "1000.00", rows[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleViews()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Food", rows[1][4])
	assert.Equal(t, "-42.5", rows[1][7])
}

type fakeLister struct {
	views  []domain.TransactionView
	err    error
	filter domain.TransactionFilter
}

func (f *fakeLister) List(ctx context.Context, ownerID string, filter domain.TransactionFilter) ([]domain.TransactionView, error) {
	f.filter = filter
	return f.views, f.err
}

type memWriter struct {
	name, contentType string
	data              []byte
}

func (m *memWriter) WriteObject(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.name, m.contentType, m.data = name, contentType, data
	return GCSURI("bucket", name), nil
}

func TestExporterRun(t *testing.T) {
	lister := &fakeLister{views: sampleViews()}
	dest := &memWriter{}
	e := NewExporter(lister, dest, zerolog.Nop())

	loc, err := e.Run(context.Background(), Request{
		OwnerID: "u1",
		Name:    "job-1",
		Format:  FormatCSV,
		Filter:  domain.TransactionFilter{Category: "Food"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gs://bucket/exports/u1/job-1.csv", loc)
	assert.Equal(t, "text/csv", dest.contentType)
	assert.Equal(t, "Food", lister.filter.Category)
	assert.Contains(t, string(dest.data), "lunch, with team")
}

func TestExporterRunListFailure(t *testing.T) {
	e := NewExporter(&fakeLister{err: errors.New("boom")}, &memWriter{}, zerolog.Nop())
	_, err := e.Run(context.Background(), Request{OwnerID: "u1", Name: "x", Format: FormatCSV})
	assert.Error(t, err)
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	loc, err := FileWriter{Dir: dir}.WriteObject(context.Background(), "exports/u1/a.csv", "text/csv", bytes.NewBufferString("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports", "u1", "a.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestExporterRejectsUnsafeOwner(t *testing.T) {
	dir := t.TempDir()
	lister := &fakeLister{views: sampleViews()}
	e := NewExporter(lister, FileWriter{Dir: filepath.Join(dir, "out")}, zerolog.Nop())

	for _, owner := range []string{"../../x", `..\x`, "..", ""} {
		_, err := e.Run(context.Background(), Request{OwnerID: owner, Name: "job-1", Format: FormatCSV})
		assert.ErrorIs(t, err, domain.ErrValidation, owner)
	}
	_, err := e.Run(context.Background(), Request{OwnerID: "u1", Name: "../job", Format: FormatCSV})
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileWriterStaysInDir(t *testing.T) {
	dir := t.TempDir()
	w := FileWriter{Dir: filepath.Join(dir, "out")}
	for _, name := range []string{"../escape.csv", "exports/../../escape.csv", "/abs.csv"} {
		_, err := w.WriteObject(context.Background(), name, "text/csv", bytes.NewBufferString("x"))
		assert.Error(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, "escape.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://ledger-exports/exports/u1/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "ledger-exports", bucket)
	assert.Equal(t, "exports/u1/a.csv", object)

	_, _, err = ParseGCSURI("s3://bucket/key")
	assert.Error(t, err)
	_, _, err = ParseGCSURI("gs://bucket")
	assert.Error(t, err)
}
