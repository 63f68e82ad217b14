package watch

import (
	"context"
	"fmt"
	"log"
	"os"
)

// Suffixes appended to a file once it has been processed, so it is not
// picked up again.
const (
	SuffixImported = ".imported"
	SuffixFailed   = ".failed"
)

// ApplyFunc imports one settled file.
type ApplyFunc func(ctx context.Context, ev FileEvent) error

// Consume applies every settled file from fw until ctx is cancelled or the
// watcher stops. Each file is renamed with SuffixImported or SuffixFailed
// after apply returns. done, when non-nil, observes every outcome.
func Consume(ctx context.Context, fw *FileWatcher, apply ApplyFunc, done func(FileEvent, error), logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events():
			if !ok {
				return
			}
			err := apply(ctx, ev)
			suffix := SuffixImported
			if err != nil {
				logger.Printf("Import of %s failed: %v", ev.Path, err)
				suffix = SuffixFailed
			} else {
				logger.Printf("Imported %s", ev.Path)
			}
			if rerr := os.Rename(ev.Path, ev.Path+suffix); rerr != nil {
				logger.Printf("Failed to mark %s as processed: %v", ev.Path, rerr)
				if err == nil {
					err = fmt.Errorf("failed to mark import as processed: %w", rerr)
				}
			}
			if done != nil {
				done(ev, err)
			}

		case err, ok := <-fw.Errors():
			if !ok {
				return
			}
			logger.Printf("Watcher error: %v", err)
		}
	}
}
