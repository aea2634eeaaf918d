package contacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reloader keeps a Store in sync with the contacts file: on a cron schedule
// and whenever the file is written.
type Reloader struct {
	path     string
	schedule string
	store    *Store
	log      zerolog.Logger
	load     func(path string) ([]Contact, error)

	cron    *cron.Cron
	watcher *fsnotify.Watcher
}

func NewReloader(path, schedule string, store *Store, log zerolog.Logger) *Reloader {
	return &Reloader{
		path:     path,
		schedule: schedule,
		store:    store,
		log:      log,
		load:     LoadXLSX,
	}
}

// Reload loads the file once and swaps the store contents. A missing file
// empties the list; any other error keeps the previous list.
func (r *Reloader) Reload() {
	list, err := r.load(r.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.log.Warn().Str("file", r.path).Msg("contacts file not found, using empty list")
		r.store.Replace([]Contact{})
	case err != nil:
		r.log.Error().Err(err).Str("file", r.path).Msg("failed to load contacts, keeping previous list")
	default:
		r.store.Replace(list)
		r.log.Info().Int("count", len(list)).Str("file", r.path).Msg("loaded contacts")
	}
}

// Start performs an initial load, then reloads on the schedule and on file
// changes until ctx is done.
func (r *Reloader) Start(ctx context.Context) error {
	r.Reload()

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.Reload); err != nil {
		return fmt.Errorf("invalid contacts reload schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		r.log.Warn().Err(err).Msg("file watcher unavailable, relying on schedule only")
	} else if err := w.Add(filepath.Dir(r.path)); err != nil {
		r.log.Warn().Err(err).Msg("cannot watch contacts directory, relying on schedule only")
		w.Close()
	} else {
		r.watcher = w
		go r.watch(ctx)
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

func (r *Reloader) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
}

func (r *Reloader) watch(ctx context.Context) {
	target := filepath.Clean(r.path)
	// Editors and spreadsheet apps emit bursts of events per save.
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce = time.After(500 * time.Millisecond)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("contacts watcher error")
		case <-debounce:
			debounce = nil
			r.Reload()
		}
	}
}
