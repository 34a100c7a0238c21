package policy

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors a policy directory and calls reload each time a YAML file
// is written, created, removed, or renamed. It runs until ctx is cancelled.
//
// If a reload fails (invalid YAML, failed validation), the error is logged
// and the previous policy set remains active.
func Watch(ctx context.Context, dir string, reload func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Printf("Watching policy directory for changes: %s", dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if err := reload(); err != nil {
				log.Printf("Policy reload failed, keeping previous set: %v", err)
				continue
			}
			log.Printf("Policies reloaded after change to %s", filepath.Base(event.Name))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Policy watcher error: %v", err)
		}
	}
}
