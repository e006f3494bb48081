// Package watcher reports changes to individual configuration files.
//
// The engine watches its service token file: when an operator rotates the
// credential, every cached catalog lease is evicted so the next lease is
// requested with the new credential.
//
// Usage:
//
//	w, err := watcher.NewFileWatcher(watcher.Options{Debounce: 250 * time.Millisecond})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	return w.Watch(ctx, []string{tokenFile}, func(ev watcher.FileEvent) {
//	    broker.EvictAll()
//	})
package watcher
