package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"dronewatch/internal/drone"
	"dronewatch/internal/upstream"
	"dronewatch/internal/violation"
)

// enrich looks up every candidate's owner in a bounded pool and returns the
// records whose lookup succeeded, in candidate order. Goroutines never return
// an error, so one failed lookup never cancels its siblings.
func (j *Job) enrich(ctx context.Context, logger *slog.Logger, candidates []drone.Position) []violation.Record {
	slots := make([]*violation.Record, len(candidates))

	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for i, p := range candidates {
		g.Go(func() error {
			rec, err := j.lookup(ctx, p)
			if err != nil {
				j.metrics.IncrementLookupFailure(string(upstream.CategoryOf(err)))
				logger.WarnContext(ctx, "owner lookup failed; drone skipped this tick",
					"drone_id", p.DroneID,
					"owner_id", p.OwnerID.String(),
					"retryable", upstream.IsRetryable(err),
					"error", err,
				)
				return nil
			}
			slots[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]violation.Record, 0, len(candidates))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// lookup fetches the owner and stamps the record. A panic in the directory
// client is contained to this drone.
func (j *Job) lookup(ctx context.Context, p drone.Position) (rec violation.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("owner lookup panicked: %v", r)
		}
	}()

	o, err := j.owners.Lookup(ctx, p.OwnerID.String())
	if err != nil {
		return violation.Record{}, err
	}
	return violation.NewRecord(p, o, j.clock.Now()), nil
}
