package broadcast

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// waitFor polls fn every interval until it reports true, fails, or timeout elapses. A spinner
// is drawn on w while waiting; pass io.Discard to stay silent.
func waitFor(ctx context.Context, w io.Writer, description string, timeout, interval time.Duration, fn func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() {
		_ = bar.Finish()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("condition not met within %.2f seconds: %w", timeout.Seconds(), ctx.Err())
		case <-ticker.C:
			_ = bar.Add(1)
			ok, err := fn(ctx)
			if err != nil {
				return fmt.Errorf("error checking condition: %w", err)
			}
			if ok {
				return nil
			}
		}
	}
}
