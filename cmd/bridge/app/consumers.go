package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// consumers runs the bus subscribers. They are detached from cancellation
// and stop when the bus closes their delivery channels, so everything
// published before shutdown is still written.
type consumers struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	logger *slog.Logger
}

func (c *consumers) Go(ctx context.Context, run func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := run(ctx); err != nil {
			c.logger.Error(err.Error())

			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		}
	}()
}

// Wait blocks until every consumer has returned and joins their errors.
func (c *consumers) Wait() error {
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}
