package etc

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"

	"github.com/marmos91/hostkit/internal/logger"
)

// Op is the kind of change observed on an etc file.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Event is one change to a file matching the watcher's filter.
type Event struct {
	Path string
	Op   Op
}

// Watcher reports changes to the etc directories. Files are not reloaded;
// the callback decides what a change means.
type Watcher struct {
	filter   string
	onChange func(Event)

	watcher *fsnotify.Watcher
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewWatcher watches dirs and invokes onChange, from a single goroutine,
// for every change to a file matching filter. A nil onChange only logs.
func NewWatcher(dirs []string, filter string, onChange func(Event)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var errs error
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, multierr.Append(errs, fw.Close())
	}

	w := &Watcher{
		filter:   filter,
		onChange: onChange,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.loop()

	logger.Info("Watching etc directories", logger.KeyCount, len(dirs))
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Etc watcher error", logger.KeyError, err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !Matches(w.filter, ev.Name) {
		return
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	logger.Info("Etc file changed", logger.KeyEtcFile, ev.Name, "op", string(op))
	if w.onChange != nil {
		w.onChange(Event{Path: ev.Name, Op: op})
	}
}

// Close stops watching and waits for the event loop. It is idempotent.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		err := w.watcher.Close()
		<-w.done
		if err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			w.closeErr = err
		}
	})
	return w.closeErr
}
