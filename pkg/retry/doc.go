// Package retry runs bounded retries and context-aware waits.
//
// The browser driver uses it for the download trigger, which is observed to
// ignore the first click now and then:
//
//	err := retry.Do(ctx, &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
//		RetryIf:     func(err error) bool { return errors.Is(err, errNoDownloadEvent) },
//	}, func(ctx context.Context, attempt int) error {
//		return clickAndWait(ctx)
//	})
//
// Polling loops use Wait, which returns early with ctx.Err() on cancellation.
package retry
