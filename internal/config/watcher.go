package config

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchSite monitors the config file and calls onChange with the re-read site
// section whenever it is written. Editors often replace the file, so Create
// is treated like Write.
func WatchSite(ctx context.Context, path string, onChange func(SiteConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Debounce: writes often arrive as a burst
				time.Sleep(100 * time.Millisecond)

				cfg, err := Load(path)
				if err != nil {
					log.Printf("[CONFIG] Reload failed, keeping previous site config: %v", err)
					continue
				}
				log.Printf("[CONFIG] Site section reloaded (%d cameras)", len(cfg.Site.Cameras))
				onChange(cfg.Site)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[CONFIG] Watcher error: %v", err)
			}
		}
	}()

	return nil
}
