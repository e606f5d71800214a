package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher hot-reloads a Config from its backing YAML file on write,
// grounded in the teacher's internal/config ConfigManager file watcher
// (fsnotify on both the file and its directory, to also catch atomic
// rename-based writes, with a debounce timer and a polling fallback).
type Watcher struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	stopCh chan struct{}
}

// WatchFile loads path once and starts watching it for subsequent
// changes. Call Current() to read the latest config; call Stop when done.
func WatchFile(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, cfg: cfg, stopCh: make(chan struct{})}
	if path != "" {
		w.start()
	}
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Stop ends the background watch goroutine.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) start() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("config: failed to create file watcher, falling back to polling")
		w.startPolling()
		return
	}
	if err := watcher.Add(w.path); err != nil {
		log.WithError(err).WithField("path", w.path).Warn("config: failed to watch file, falling back to polling")
		watcher.Close()
		w.startPolling()
		return
	}
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		log.WithError(err).WithField("dir", dir).Warn("config: failed to watch directory")
	}

	log.WithField("path", w.path).Info("config: file watcher started")

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		const debounceWindow = 100 * time.Millisecond

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceWindow, w.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config: file watcher error")
			case <-w.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()
}

func (w *Watcher) startPolling() {
	ticker := time.NewTicker(5 * time.Second)
	log.Info("config: file watcher started using polling")
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.reload()
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.WithError(err).WithField("path", w.path).Warn("config: reload failed, keeping previous config")
		return
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	log.WithField("path", w.path).Info("config: reloaded")
}
