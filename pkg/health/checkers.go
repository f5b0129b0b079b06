package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines, which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// SessionCountCheck fails once count reaches limit, i.e. when no new
// session could be created. A non-positive limit disables the check.
func SessionCountCheck(count func() int, limit int) CheckFunc {
	return func(context.Context) error {
		if limit <= 0 {
			return nil
		}
		if n := count(); n >= limit {
			return errors.Errorf("session count %d reached limit %d", n, limit)
		}
		return nil
	}
}

// Pinger is implemented by dependencies that can report reachability, such
// as the Postgres catalog source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}
