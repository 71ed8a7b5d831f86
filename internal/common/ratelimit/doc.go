// Package ratelimit paces outbound work.
//
// The pipeline issues one detail resolution per record against a public
// site, so records are spaced by a fixed minimum interval rather than
// sent in bursts. The limiter is built on golang.org/x/time/rate with a
// burst of one: the first Wait returns immediately and every following Wait
// returns no sooner than Interval after the previous one. Calling Done when
// a unit of work finishes moves the reference point to that moment, so a
// slow unit still leaves a full Interval of quiet before the next one.
//
// Usage:
//
//	limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
//		Interval: time.Second,
//		Enabled:  true,
//	})
//	if err != nil {
//		return err
//	}
//	for _, rec := range records {
//		if err := limiter.Wait(ctx); err != nil {
//			return err
//		}
//		// resolve and write rec
//		limiter.Done()
//	}
package ratelimit
