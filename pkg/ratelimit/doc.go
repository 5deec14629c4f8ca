// Package ratelimit paces consecutive generations in batch mode.
//
// The hosted UI throttles accounts that submit prompts back to back, so
// the batch command waits on a sliding window before every prompt:
//
//	limiter := ratelimit.PerMinute(cfg.Batch.GenerationsPerMinute)
//	for _, prompt := range prompts {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // generate
//	}
package ratelimit
