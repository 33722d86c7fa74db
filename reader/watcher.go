package reader

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher invalidates cached tables when their files change on disk.
// The modification time check in Schema.Table stays authoritative; the
// watcher only frees stale entries early.
type Watcher struct {
	watcher *fsnotify.Watcher
	schemas map[string]*Schema

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	// Events receives the name of every invalidated table when non-nil
	Events chan string
}

// WatchCatalog starts watching every schema directory of c
func WatchCatalog(c *Catalog) (*Watcher, error) {
	return Watch(c.opts, c.Schemas()...)
}

// Watch starts watching the given schemas
func Watch(opts *Options, schemas ...*Schema) (*Watcher, error) {
	opts = opts.withDefaults()
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "fsnotify.NewWatcher failed")
	}

	w := &Watcher{
		watcher: fw,
		schemas: make(map[string]*Schema),
		done:    make(chan struct{}),
		Events:  make(chan string, 16),
	}
	for _, s := range schemas {
		dir := filepath.Clean(s.Dir)
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", dir)
		}
		w.schemas[dir] = s
	}

	logger := opts.Logger.With("component", "watcher")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()

		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				s, ok := w.schemas[filepath.Dir(event.Name)]
				if !ok {
					continue
				}
				name := filepath.Base(event.Name)
				switch ClassifyFile(name) {
				case KindTable, KindPrimaryIndex, KindSecondaryIndex:
				default:
					continue
				}
				stem := strings.TrimSuffix(name, filepath.Ext(name))
				s.Invalidate(stem)
				logger.Debug("file changed", "schema", s.Name, "file", name, "op", event.Op.String())
				select {
				case w.Events <- stem:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", "error", err)
			case <-w.done:
				return
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
	return nil
}
