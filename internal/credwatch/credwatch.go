// Package credwatch implements the third credential-ingestion path named
// by spec.md §3 (alongside the OAuth callback and the resource:add POST
// route): a directory of one JSON file per credential, scanned once at
// startup and then hot-reloaded on change, grounded in the teacher's
// internal/credential/source_file.go (directory scan) and
// internal/credential/manager_watch.go (fsnotify + debounce).
package credwatch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/yeshanjun/pollux/internal/credential"
	"github.com/yeshanjun/pollux/internal/credstore"
	"github.com/yeshanjun/pollux/internal/scheduler"
)

const debounceWindow = 200 * time.Millisecond

// fileRecord mirrors the on-disk shape of a credential file, matching the
// resource:add request body shape plus an explicit provider field since a
// directory can mix providers.
type fileRecord struct {
	Provider     credential.Provider `json:"provider"`
	Identity     string              `json:"identity"`
	ClientID     string              `json:"client_id"`
	ClientSecret string              `json:"client_secret"`
	RefreshToken string              `json:"refresh_token"`
}

// Watcher ingests every credential JSON file under Dir at startup, then
// re-scans (debounced) whenever the directory changes.
type Watcher struct {
	dir       string
	store     credstore.Store
	scheduler *scheduler.Actor

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(dir string, store credstore.Store, sched *scheduler.Actor) *Watcher {
	return &Watcher{dir: dir, store: store, scheduler: sched, stopCh: make(chan struct{})}
}

// ScanOnce reads every "*.json" file in Dir and ingests it. A missing or
// empty Dir is not an error — the directory scan is optional.
func (w *Watcher) ScanOnce(ctx context.Context) error {
	if w.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		w.ingestFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("credwatch: failed to read credential file")
		return
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.WithError(err).WithField("path", path).Warn("credwatch: failed to parse credential file")
		return
	}
	if rec.Identity == "" || rec.RefreshToken == "" || rec.Provider == "" {
		log.WithField("path", path).Warn("credwatch: skipping file missing provider/identity/refresh_token")
		return
	}
	cred := &credential.Credential{
		Provider:     rec.Provider,
		Identity:     rec.Identity,
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		RefreshToken: rec.RefreshToken,
		Status:       credential.StatusEnabled,
	}
	if err := w.store.Upsert(ctx, cred); err != nil {
		log.WithError(err).WithField("path", path).Warn("credwatch: failed to persist credential")
		return
	}
	w.scheduler.Ingest(ctx, cred)
	log.WithField("path", path).Info("credwatch: ingested credential file")
}

// Watch starts a background fsnotify watch on Dir, re-scanning (debounced)
// on create/write events until ctx is done or Stop is called. A no-op when
// Dir is empty.
func (w *Watcher) Watch(ctx context.Context) {
	if w.dir == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("credwatch: failed to start file watcher")
		return
	}
	if err := watcher.Add(w.dir); err != nil {
		log.WithError(err).WithField("dir", w.dir).Warn("credwatch: failed to watch credential directory")
		watcher.Close()
		return
	}
	log.WithField("dir", w.dir).Info("credwatch: watching credential directory")

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		var debounceCh <-chan time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.NewTimer(debounceWindow)
				debounceCh = debounce.C
			case <-debounceCh:
				if err := w.ScanOnce(ctx); err != nil {
					log.WithError(err).Warn("credwatch: rescan failed")
				}
				debounceCh = nil
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("credwatch: watcher error")
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop ends the background watch goroutine, if running.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
