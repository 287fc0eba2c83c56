package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the queue's Redis.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name and returns the task id. since
// bounds an integrity scan to vouchers dated on or after it.
func (c *JobsCLI) Trigger(ctx context.Context, name, since string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	var (
		info *asynq.TaskInfo
		err  error
	)
	if name == jobs.TaskLedgerIntegrityScan && since != "" {
		info, err = c.client.EnqueueIntegrityScan(ctx, jobs.IntegrityScanPayload{Since: since})
	} else {
		info, err = c.client.Enqueue(ctx, name)
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	open := func() (Jobs, error) {
		if deps.Jobs == nil {
			return nil, errors.New("jobs: not configured")
		}
		return deps.Jobs()
	}
	var since string
	trigger := &cobra.Command{
		Use:   "trigger <name>",
		Short: fmt.Sprintf("Enqueue a job (%s, %s)", jobs.TaskLedgerIntegrityScan, jobs.TaskIdempotencyCleanup),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				if args[0] != jobs.TaskLedgerIntegrityScan {
					return fmt.Errorf("--since only applies to %s", jobs.TaskLedgerIntegrityScan)
				}
				if _, err := shared.ParseDate("since", since); err != nil {
					return err
				}
			}
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()
			id, err := j.Trigger(cmd.Context(), args[0], since)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s\n", args[0], id)
			return nil
		},
	}
	trigger.Flags().StringVar(&since, "since", "", "integrity scan start date (YYYY-MM-DD)")
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()
			s, err := j.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
			return nil
		},
	}
	cmd.AddCommand(trigger, stats)
	return cmd
}
