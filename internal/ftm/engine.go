// Package ftm implements the Engine (C10): the single orchestrator that
// owns the watched root, configuration, history index, snapshot store,
// per-file coordination, and the scanner/watcher background tasks.
package ftm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/ftm-project/ftm/internal/core/differ"
	"github.com/ftm-project/ftm/internal/core/hasher"
	"github.com/ftm-project/ftm/internal/core/history"
	"github.com/ftm-project/ftm/internal/core/pattern"
	"github.com/ftm-project/ftm/internal/core/restorer"
	"github.com/ftm-project/ftm/internal/core/scanner"
	"github.com/ftm-project/ftm/internal/core/store"
	"github.com/ftm-project/ftm/internal/core/watcher"
	"github.com/ftm-project/ftm/internal/errors"
	"github.com/ftm-project/ftm/internal/ftm/conf"
	"github.com/ftm-project/ftm/pkg/config"
	"github.com/ftm-project/ftm/pkg/util"
)

// pathCoord serializes hashing+appending for one relative path and lets
// a newer settle event preempt a still-in-flight older one (spec.md
// §4.10's Hashing/Appending state machine). It also remembers the last
// (mtime, size, xxhash) it saw for the path, so a settle that turns out
// to touch nothing of substance never has to pay for a SHA-256 pass.
type pathCoord struct {
	mu  sync.Mutex
	gen uint64

	cached   bool
	modTime  time.Time
	size     int64
	digest   uint64
	checksum string
}

// Engine is the single process-wide orchestrator. A Checkout call
// creates one rooted at a directory; tests instantiate independent
// engines rooted at temp directories rather than relying on a
// singleton (spec.md §9).
type Engine struct {
	root   string
	ftmDir string
	logDir string
	logF   *os.File

	conf   *conf.Config
	confMu sync.RWMutex
	cm     *config.Manager

	idx     *history.Index
	quota   *history.Quota
	store   *store.Store
	matcher *pattern.Matcher
	scan    *scanner.Scanner
	watch   *watcher.Watcher

	coordMu sync.Mutex
	coord   map[string]*pathCoord

	scanTicker  *time.Ticker
	cleanTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// Checkout initializes (or resumes) tracking of root: loads or creates
// .ftm/config.yaml and index.json, opens the snapshot store, and starts
// the watcher and periodic scanner/housekeeping tasks.
func Checkout(root string) (*Engine, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.IO("failed to resolve watched root", err)
	}
	ftmDir := filepath.Join(absRoot, ".ftm")

	c, cm, err := conf.Load(ftmDir)
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(ftmDir, "logs")
	logF, err := setupLogging(ftmDir)
	if err != nil {
		return nil, err
	}

	st, err := store.New(filepath.Join(ftmDir, "snapshots"))
	if err != nil {
		return nil, err
	}

	q := history.NewQuota(c.Settings.MaxHistory, c.Settings.MaxQuota)
	idx, err := history.Load(filepath.Join(ftmDir, "index.json"), q)
	if err != nil {
		return nil, err
	}

	m := pattern.New(c.Watch.Patterns, c.Watch.Exclude)

	e := &Engine{
		root:    absRoot,
		ftmDir:  ftmDir,
		logDir:  logDir,
		logF:    logF,
		conf:    c,
		cm:      cm,
		idx:     idx,
		quota:   q,
		store:   st,
		matcher: m,
		coord:   make(map[string]*pathCoord),
		stopCh:  make(chan struct{}),
	}

	e.scan = scanner.New(absRoot, m, idx, e, c.Settings.MaxFileSize)

	w, err := watcher.New(absRoot, m, 250*time.Millisecond, e.onSettle)
	if err != nil {
		return nil, errors.IO("failed to start watcher", err)
	}
	e.watch = w
	if err := e.watch.Start(); err != nil {
		return nil, errors.IO("failed to start watcher", err)
	}

	if _, err := e.scan.Scan(); err != nil {
		log.Warn().Err(err).Msg("initial scan failed")
	}

	e.startTimers()

	log.Info().Str("root", absRoot).Msg("engine checked out")
	return e, nil
}

func (e *Engine) startTimers() {
	e.scanTicker = time.NewTicker(time.Duration(e.conf.Settings.ScanInterval) * time.Second)
	e.cleanTicker = time.NewTicker(time.Duration(e.conf.Settings.CleanInterval) * time.Second)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.stopCh:
				return
			case <-e.scanTicker.C:
				if _, err := e.scan.Scan(); err != nil {
					log.Warn().Err(err).Msg("periodic scan failed")
				}
			case <-e.cleanTicker.C:
				e.clean()
			}
		}
	}()
}

// Clean runs the clean_interval housekeeping pass on demand (the `ftm
// clean` CLI command), rather than waiting for the next tick.
func (e *Engine) Clean() {
	e.clean()
}

// clean is the clean_interval housekeeping pass (SPEC_FULL.md §7):
// sweep orphaned snapshot temp files and drain the quota controller's
// blob-deletion queue.
func (e *Engine) clean() {
	cutoff := time.Duration(e.conf.Settings.CleanInterval) * time.Second
	e.store.CleanOrphanedTemp(func(info os.FileInfo) bool {
		return time.Since(info.ModTime()) > cutoff
	})
	for _, checksum := range e.quota.DrainOrphans() {
		if err := e.store.Remove(checksum); err != nil {
			log.Warn().Err(err).Str("checksum", checksum).Msg("failed to remove orphaned snapshot")
		}
	}

	if e.logF != nil {
		if f, err := rotateLogIfNeeded(e.logDir, e.logF); err != nil {
			log.Warn().Err(err).Msg("log rotation failed")
		} else {
			e.logF = f
		}
	}
}

// DiskFree reports free bytes on the filesystem backing the watched
// root, for /api/health and /api/stats.
func (e *Engine) DiskFree() (uint64, error) {
	usage, err := disk.Usage(e.root)
	if err != nil {
		return 0, errors.IO("failed to stat disk usage", err)
	}
	return usage.Free, nil
}

// TrackedSize reports the on-disk size of the watched tree itself
// (distinct from the snapshot store's quota-bounded footprint), for
// `ftm stats`.
func (e *Engine) TrackedSize() string {
	return util.GetDirSize(e.root)
}

// Stop performs a graceful shutdown: stops new event ingestion, waits
// for the housekeeping loop to exit, stops the watcher, and flushes the
// index, all within a bounded deadline.
func (e *Engine) Stop() error {
	close(e.stopCh)
	if e.scanTicker != nil {
		e.scanTicker.Stop()
	}
	if e.cleanTicker != nil {
		e.cleanTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("shutdown deadline exceeded waiting for housekeeping loop")
	}

	e.watch.Stop()
	err := e.idx.Flush()
	if e.logF != nil {
		e.logF.Close()
	}
	return err
}

func (e *Engine) coordFor(rel string) *pathCoord {
	e.coordMu.Lock()
	defer e.coordMu.Unlock()
	pc, ok := e.coord[rel]
	if !ok {
		pc = &pathCoord{}
		e.coord[rel] = pc
	}
	return pc
}

// onSettle is the watcher's Settle callback: one call per (path,
// settle) after the debounce window elapses.
func (e *Engine) onSettle(rel string, exists bool) {
	pc := e.coordFor(rel)
	pc.mu.Lock()
	pc.gen++
	myGen := pc.gen
	pc.mu.Unlock()

	if !exists {
		pc.mu.Lock()
		pc.cached = false
		if pc.gen == myGen {
			pc.mu.Unlock()
			if derr := e.Delete(rel); derr != nil {
				log.Error().Err(derr).Str("file", rel).Msg("delete failed")
			}
			return
		}
		pc.mu.Unlock()
		return
	}

	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	info, statErr := os.Stat(abs)
	if statErr != nil {
		log.Warn().Err(statErr).Str("file", rel).Msg("stat failed, event dropped")
		return
	}

	pc.mu.Lock()
	if pc.cached && pc.modTime.Equal(info.ModTime()) && pc.size == info.Size() {
		pc.mu.Unlock()
		return // metadata unchanged since last hash: not worth rehashing
	}
	pc.mu.Unlock()

	// Cheap pass first: if the content hash matches what we last stored
	// for this path, skip the SHA-256 read entirely.
	digest, qsize, qerr := hasher.QuickDigest(abs, e.conf.Settings.MaxFileSize)
	if qerr == nil {
		pc.mu.Lock()
		unchanged := pc.cached && pc.digest == digest && pc.size == qsize
		if unchanged {
			pc.modTime = info.ModTime()
			pc.mu.Unlock()
			return
		}
		pc.mu.Unlock()
	}

	res, err := hasher.Read(abs, e.conf.Settings.MaxFileSize)

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.gen != myGen {
		return // preempted by a newer event on this path
	}
	if err != nil {
		log.Warn().Err(err).Str("file", rel).Msg("hashing failed, event dropped")
		return
	}

	if _, uerr := e.Upsert(rel, res.Checksum, res.Size, res.Bytes); uerr != nil {
		log.Error().Err(uerr).Str("file", rel).Msg("upsert failed")
		return
	}
	pc.cached = true
	pc.modTime = info.ModTime()
	pc.size = res.Size
	pc.digest = digest
	pc.checksum = res.Checksum
}

// Upsert records a create/modify for file: puts the blob (if new) then
// appends a history entry. Implements scanner.Upserter.
func (e *Engine) Upsert(file, checksum string, size int64, data []byte) (bool, error) {
	if err := e.store.Put(checksum, data); err != nil {
		return false, err
	}
	created := e.idx.LatestChecksum(file) == ""
	op := history.OpModify
	if created {
		op = history.OpCreate
	}
	if _, err := e.idx.Append(file, op, checksum, size); err != nil {
		return false, err
	}
	return created, nil
}

// Delete records a delete for file. Implements scanner.Upserter.
func (e *Engine) Delete(file string) error {
	_, err := e.idx.Append(file, history.OpDelete, "", 0)
	return err
}

// History returns the ordered entries for a single file.
func (e *Engine) History(file string) []history.Entry {
	return e.idx.History(pattern.NormalizePath(file))
}

// Activity returns entries across all files within a time window.
func (e *Engine) Activity(since, until time.Time, includeDeleted bool) []history.Entry {
	return e.idx.Activity(since, until, includeDeleted)
}

// Files returns the trie view of tracked paths.
func (e *Engine) Files(includeDeleted bool) map[string]*history.FileNode {
	return e.idx.Files(includeDeleted)
}

// Diff compares the snapshots stored under two checksums. An empty from
// diffs against an empty document (full insert).
func (e *Engine) Diff(from, to string) (differ.Result, error) {
	var fromBytes []byte
	if from != "" {
		b, err := e.store.Get(from)
		if err != nil {
			return differ.Result{}, err
		}
		fromBytes = b
	}
	toBytes, err := e.store.Get(to)
	if err != nil {
		return differ.Result{}, err
	}
	return differ.Compare(fromBytes, toBytes), nil
}

// Snapshot returns the raw bytes for a checksum.
func (e *Engine) Snapshot(checksum string) ([]byte, error) {
	return e.store.Get(checksum)
}

// Scan runs (or joins an in-flight) reconciliation pass.
func (e *Engine) Scan() (scanner.Result, error) {
	return e.scan.Scan()
}

// Restore resolves a checksum prefix against file's history and
// materializes that version back to disk.
func (e *Engine) Restore(file, checksumPrefix string) error {
	file = pattern.NormalizePath(file)
	if len(checksumPrefix) < 8 {
		return errors.InvalidConfig("checksum", "prefix must be at least 8 characters")
	}

	hist := e.idx.History(file)
	var match string
	for _, entry := range hist {
		if entry.Checksum == "" {
			continue
		}
		if strings.HasPrefix(entry.Checksum, checksumPrefix) {
			if match != "" && match != entry.Checksum {
				return errors.AmbiguousChecksum(checksumPrefix)
			}
			match = entry.Checksum
		}
	}
	if match == "" {
		return errors.NotFound("checksum prefix " + checksumPrefix + " for " + file)
	}

	data, err := e.store.Get(match)
	if err != nil {
		return err
	}

	abs := filepath.Join(e.root, filepath.FromSlash(file))
	if err := restorer.Restore(abs, data); err != nil {
		return err
	}
	// The watcher's own settle event on abs records this as history; we
	// do not mutate the index directly (spec.md §4.9).
	return nil
}

// Stats reports current index size against configured quotas.
func (e *Engine) Stats() (count, maxHistory int, quotaBytes, maxQuota int64) {
	return e.idx.Stats()
}

// WatchDir returns the absolute watched root, for /api/health.
func (e *Engine) WatchDir() string {
	return e.root
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() conf.Config {
	e.confMu.RLock()
	defer e.confMu.RUnlock()
	return *e.conf
}

// SetConfig mutates a single dotted config key and persists it via the
// same config.Manager read/write path used at startup.
func (e *Engine) SetConfig(key string, value any) error {
	e.confMu.Lock()
	defer e.confMu.Unlock()
	if err := e.cm.SetConfig(key, value); err != nil {
		return errors.IO("failed to persist config", err)
	}
	updated := &conf.Config{}
	if err := e.cm.Load(updated); err != nil {
		return errors.IO("failed to reload config", err)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	updated.ConfigDir = e.conf.ConfigDir
	e.conf = updated
	e.matcher = pattern.New(updated.Watch.Patterns, updated.Watch.Exclude)
	e.scan.SetMatcher(e.matcher)
	e.watch.SetMatcher(e.matcher)
	return nil
}
