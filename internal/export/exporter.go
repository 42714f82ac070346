package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionLister returns a user's annotated transactions.
type TransactionLister interface {
	List(ctx context.Context, ownerID string, filter domain.TransactionFilter) ([]domain.TransactionView, error)
}

// Request describes one statement export.
type Request struct {
	OwnerID string
	// Name is the object base name without extension, usually the job id.
	Name   string
	Format Format
	Filter domain.TransactionFilter
}

// Exporter renders a user's statement and hands it to an ObjectWriter.
type Exporter struct {
	source TransactionLister
	dest   ObjectWriter
	log    zerolog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(source TransactionLister, dest ObjectWriter, log zerolog.Logger) *Exporter {
	return &Exporter{source: source, dest: dest, log: log}
}

// ObjectName returns exports/<owner>/<name>.<ext>. The owner id and name
// must each be a single path segment.
func ObjectName(ownerID, name string, f Format) (string, error) {
	for _, seg := range []string{ownerID, name} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return "", fmt.Errorf("%w: unsafe object path segment %q", domain.ErrValidation, seg)
		}
	}
	return path.Join("exports", ownerID, name+"."+f.Extension()), nil
}

// Run exports the matching transactions and returns the stored location.
func (e *Exporter) Run(ctx context.Context, req Request) (string, error) {
	name, err := ObjectName(req.OwnerID, req.Name, req.Format)
	if err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	views, err := e.source.List(ctx, req.OwnerID, req.Filter)
	if err != nil {
		return "", fmt.Errorf("Export: list transactions: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, req.Format, views); err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	location, err := e.dest.WriteObject(ctx, name, req.Format.ContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("Export: store statement: %w", err)
	}

	e.log.Info().
		Str("owner_id", req.OwnerID).
		Str("format", string(req.Format)).
		Int("transactions", len(views)).
		Str("location", location).
		Msg("Statement exported")

	return location, nil
}
