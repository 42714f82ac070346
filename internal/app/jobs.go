package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

// ErrNotionDisabled is returned for sync jobs when Notion is not configured.
var ErrNotionDisabled = errors.New("notion sync is not configured")

// HandleJob runs one background job and records its outcome in job.Result.
// It satisfies jobs.JobHandler.
func (a *App) HandleJob(ctx context.Context, job *jobs.LedgerJob) error {
	log := a.log.With().
		Str("job_id", job.JobID).
		Str("job_type", string(job.Type)).
		Str("owner_id", job.OwnerID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Int("retry_count", job.RetryCount).Msg("Processing job")

	var err error
	switch job.Type {
	case jobs.JobTypeExportTransactions:
		err = a.runExport(ctx, job)
	case jobs.JobTypeSyncNotion:
		err = a.runNotionSync(ctx, job)
	default:
		err = fmt.Errorf("unexpected job type: %s", job.Type)
	}
	if err != nil {
		log.Error().Err(err).Msg("Job execution failed")
		return err
	}

	log.Info().Str("result", job.Result).Msg("Job execution completed successfully")
	return nil
}

func (a *App) runExport(ctx context.Context, job *jobs.LedgerJob) error {
	if job.Export == nil {
		return fmt.Errorf("export job %s has no parameters", job.JobID)
	}
	format, err := export.ParseFormat(job.Export.Format)
	if err != nil {
		return err
	}

	uri, err := a.Exporter.Run(ctx, export.Request{
		OwnerID: job.OwnerID,
		Name:    job.JobID,
		Format:  format,
		Filter: domain.TransactionFilter{
			AccountID: job.Export.AccountID,
			Category:  job.Export.Category,
			From:      job.Export.StartDate,
			To:        job.Export.EndDate,
		},
	})
	if err != nil {
		return err
	}
	job.Result = uri
	return nil
}

func (a *App) runNotionSync(ctx context.Context, job *jobs.LedgerJob) error {
	if a.Syncer == nil {
		return ErrNotionDisabled
	}
	params := jobs.NotionSyncParams{}
	if job.Sync != nil {
		params = *job.Sync
	}

	res, err := a.Syncer.Sync(ctx, job.OwnerID, params.StartDate, params.EndDate, params.DryRun)
	job.Result = res.String()
	return err
}
