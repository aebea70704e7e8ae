package changes

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	pq "github.com/lib/pq"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/logger"
)

// Source feeds store change notifications into a Broker
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// FileWatcher reports writes to a SQLite database by watching the database
// file and its WAL in the containing directory. SQLite carries no row
// information, so every event is Unknown.
type FileWatcher struct {
	mu      sync.Mutex
	path    string
	broker  *Broker
	watcher *fsnotify.Watcher
	log     *log.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewFileWatcher(dbPath string, broker *Broker) *FileWatcher {
	return &FileWatcher{
		path:   filepath.Clean(dbPath),
		broker: broker,
		log:    logger.With("source", "sqlite"),
	}
}

// Start begins watching. It is non-blocking.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.log.Debug("Watching database for changes", "path", w.path)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("Failed to close file watcher", "error", err)
	}
}

func (w *FileWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.broker.Publish(Event{})
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == w.path || name == w.path+"-wal"
}

// PGListener relays NOTIFY messages on the keepup change channel
type PGListener struct {
	mu           sync.Mutex
	connStr      string
	broker       *Broker
	listener     *pq.Listener
	log          *log.Logger
	pingInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
}

func NewPGListener(connStr string, broker *Broker) *PGListener {
	return &PGListener{
		connStr:      connStr,
		broker:       broker,
		log:          logger.With("source", "postgres"),
		pingInterval: 90 * time.Second,
	}
}

// Start connects and subscribes to the change channel. It is non-blocking.
func (l *PGListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	listener := pq.NewListener(l.connStr, constants.ListenerMinReconnect, constants.ListenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				l.log.Warn("Change listener connection event", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(constants.ChangeChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", constants.ChangeChannel, err)
	}

	l.listener = listener
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.running = true

	go l.run(ctx)
	return nil
}

// Stop unsubscribes and waits for the relay goroutine to exit
func (l *PGListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh
	if err := l.listener.Close(); err != nil {
		l.log.Warn("Failed to close change listener", "error", err)
	}
}

func (l *PGListener) run(ctx context.Context) {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			l.broker.Publish(notificationEvent(n))
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				l.log.Warn("Change listener ping failed", "error", err)
			}
		}
	}
}

// notificationEvent converts a notification. A nil notification follows a
// reconnect, after which anything may have changed.
func notificationEvent(n *pq.Notification) Event {
	if n == nil {
		return Event{}
	}
	e, err := ParsePayload(n.Extra)
	if err != nil {
		logger.Warn("Ignoring malformed change notification", "error", err)
		return Event{}
	}
	return e
}
