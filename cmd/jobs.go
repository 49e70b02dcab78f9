package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/finport/internal/formatter"
	"github.com/desertthunder/finport/internal/models"
	"github.com/desertthunder/finport/internal/repositories"
	"github.com/desertthunder/finport/internal/shared"
	"github.com/desertthunder/finport/internal/tasks"
)

// JobsList prints the user's import jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	filter := repositories.JobFilter{Limit: int(cmd.Int("limit"))}
	if s := cmd.String("status"); s != "" {
		if filter.Status, err = models.ParseJobStatus(s); err != nil {
			return err
		}
	}

	jobs, err := r.jobs.List(ctx, userID, filter)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if cmd.Bool("json") {
		data, err := formatter.JobsJSON(jobs)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if len(jobs) == 0 {
		return r.writePlain("No imports yet.\n")
	}
	for _, job := range jobs {
		r.writePlain("%s\n", formatter.JobLine(job))
	}
	return nil
}

// JobsShow prints a single import job.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}
	if !shared.IsValidID(id) {
		return fmt.Errorf("%w: %q is not a job id", shared.ErrInvalidArgument, id)
	}

	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	job, err := r.jobs.Get(ctx, id, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.ToJobJSON(job), true)
	}

	written, err := r.txns.List(ctx, userID, repositories.TransactionFilter{ImportID: id, Limit: repositories.DefaultListLimit})
	if err != nil {
		return err
	}

	r.writePlain("%s\n", formatter.JobLine(job))
	r.writePlain("ID: %s\n", job.ID())
	r.writePlain("Rows last written by this import: %d\n", len(written))
	return nil
}

// JobsSweep marks parsing jobs older than --older-than as failed.
func (r *Runner) JobsSweep(ctx context.Context, cmd *cli.Command) error {
	var userID string
	if !cmd.Bool("all-users") {
		var err error
		if userID, err = r.userID(ctx, cmd); err != nil {
			return err
		}
	}

	olderThan := cmd.Duration("older-than")
	if olderThan <= 0 {
		d, err := r.config.Import.StaleAfterDuration()
		if err != nil {
			return err
		}
		olderThan = d
	}

	if err := r.open(); err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 64)
	wg := r.watchProgress(progressCh)
	swept, err := r.engine.SweepStale(ctx, progressCh, userID, olderThan)
	close(progressCh)
	wg.Wait()
	if err != nil {
		return err
	}

	return r.writePlain("Swept %d abandoned imports older than %s\n", len(swept), olderThan)
}

// JobsDelete removes an import job. Transactions keep their import id.
func (r *Runner) JobsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	userID, err := r.userID(ctx, cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	if err := r.jobs.Delete(ctx, id, userID); err != nil {
		return err
	}

	count, err := r.txns.Count(ctx, userID)
	if err != nil {
		return err
	}
	return r.writePlain("Deleted import %s (%d transactions kept)\n", id, count)
}
