package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Handle calls quit on the first termination signal and reload on every
// reload signal until ctx is done or quit has been called.
func Handle(ctx context.Context, quit, reload func()) {
	quitCh := make(chan os.Signal, 1)
	reloadCh := make(chan os.Signal, 1)
	Notify(quitCh)
	NotifyReload(reloadCh)

	go func() {
		defer signal.Stop(quitCh)
		defer signal.Stop(reloadCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadCh:
				if reload != nil {
					reload()
				}
			case <-quitCh:
				if quit != nil {
					quit()
				}
				return
			}
		}
	}()
}
