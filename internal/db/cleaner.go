package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// DefaultCleanupBatch bounds the rows removed by one DELETE statement.
const DefaultCleanupBatch = 500

const deleteExpiredCodes = `
	DELETE FROM auth_codes
	 WHERE ctid IN (
		SELECT ctid FROM auth_codes
		 WHERE expires_at < $1
		 LIMIT $2
	 )`

// CodeCleaner removes expired magic-link and reset codes, at most BatchSize
// rows per statement.
type CodeCleaner struct {
	DB        *sql.DB
	Interval  time.Duration
	BatchSize int
	// Removed, when set, receives the number of rows each sweep deleted.
	Removed func(n int64)
	Log     *zap.Logger

	now func() time.Time
}

// Start sweeps every Interval until ctx is cancelled.
func (c *CodeCleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := c.Sweep(ctx)
				if err != nil {
					c.Log.Error("failed to clean expired auth codes", zap.Int64("removed", removed), zap.Error(err))
					continue
				}
				if removed > 0 {
					c.Log.Info("cleaned expired auth codes", zap.Int64("removed", removed))
				}
			}
		}
	}()
}

// Sweep deletes codes that expired before now, one batch at a time, and
// returns how many rows went. Rows removed before a failing batch count.
func (c *CodeCleaner) Sweep(ctx context.Context) (int64, error) {
	batch := c.BatchSize
	if batch <= 0 {
		batch = DefaultCleanupBatch
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	cutoff := now().UTC()

	var total int64
	defer func() {
		if c.Removed != nil && total > 0 {
			c.Removed(total)
		}
	}()
	for {
		res, err := c.DB.ExecContext(ctx, deleteExpiredCodes, cutoff, batch)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batch) {
			return total, nil
		}
	}
}
