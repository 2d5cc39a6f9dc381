// Package resilience holds the fault tolerance building blocks used around
// notification providers and the database.
//
//   - circuitbreaker: per-channel and database circuit breakers on sony/gobreaker
//   - retry: sequential attempts with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ChannelConfig("email"))
//	attempts, err := retry.Do(ctx, retry.ChannelSendConfig(3), func(attempt int) error {
//	    return cb.Run(func() error { return sender.Send(ctx, msg, recipients) })
//	})
package resilience
