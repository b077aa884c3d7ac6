// Package updater watches front-end assets and publishes a version token, so clients
// can detect a new bundle and reload. Polling runs on a cron schedule.
package updater

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"
)

// EmbeddedVersion reported when no asset directory is watched
const EmbeddedVersion = "embedded"

// Watcher tracks changes of files in dir
type Watcher struct {
	dir  string
	spec string
	cron *cron.Cron

	once    sync.Once
	mu      sync.RWMutex
	version string
}

// New makes watcher for dir, polled by cron spec, e.g. "@every 1m". Nothing is started until Register.
func New(dir, spec string) *Watcher {
	return &Watcher{dir: dir, spec: spec, cron: cron.New(), version: EmbeddedVersion}
}

// Register computes the initial version and schedules polling. Only the first call has effect.
func (w *Watcher) Register() {
	w.once.Do(func() {
		if w.dir == "" {
			log.Printf("[DEBUG] no assets directory, updates disabled")
			return
		}
		w.check()
		if _, err := w.cron.AddFunc(w.spec, w.check); err != nil {
			log.Printf("[WARN] can't schedule assets check %q, %v", w.spec, err)
			return
		}
		w.cron.Start()
		log.Printf("[INFO] watching assets in %s, %s", w.dir, w.spec)
	})
}

// Version returns the current assets version token
func (w *Watcher) Version() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Stop terminates polling, waits for the running check to complete
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
}

// check recalculates version and logs when it changed
func (w *Watcher) check() {
	ver, err := w.calcVersion()
	if err != nil {
		log.Printf("[WARN] can't check assets in %s, %v", w.dir, err)
		return
	}

	w.mu.Lock()
	prev := w.version
	w.version = ver
	w.mu.Unlock()

	if prev != ver && prev != EmbeddedVersion {
		log.Printf("[INFO] assets updated, version %s -> %s", prev, ver)
	}
}

// calcVersion hashes names, sizes and modification times of all regular files in dir
func (w *Watcher) calcVersion() (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(h, "%s:%d:%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
