package checker

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch drops the loaded model each time the model file is written, created or renamed.
// The directory of the model is watched, so atomic replacements of the file are noticed too.
// Blocks until ctx is done.
func (c *Checker) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	modelPath := filepath.Clean(c.ModelPath)
	if err = watcher.Add(filepath.Dir(modelPath)); err != nil {
		return fmt.Errorf("failed to add %s to watcher: %w", modelPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] stopping watcher for %s, %v", modelPath, ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != modelPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Printf("[INFO] model file %s changed (%s), reload on next check", modelPath, event.Op)
				c.Invalidate()
			}
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] watcher error: %v", e)
		}
	}
}
