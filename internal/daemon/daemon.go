// Package daemon runs the sync engine continuously.
//
// The daemon:
// 1. Performs a sync pass on a fixed interval
// 2. Watches the data directory so deleting the property cache file
//    (the manual schema-invalidation gesture) triggers an immediate pass
// 3. Handles graceful shutdown on context cancellation
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Runner executes one sync pass. A pass failure is logged and the daemon
// keeps running; the next tick retries from the saved checkpoint.
type Runner interface {
	RunPass(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// Interval between sync passes. Zero means the 15m default.
	Interval time.Duration

	// DataDir is watched for changes to the property cache file.
	DataDir string

	// CacheFile is the property cache filename inside DataDir whose
	// deletion triggers an immediate pass.
	CacheFile string

	// Logger for daemon activity.
	Logger *log.Logger
}

// Daemon drives periodic sync passes and watches for cache invalidation.
type Daemon struct {
	runner  Runner
	config  Config
	watcher *fsnotify.Watcher
}

// New creates a Daemon. Use Run to start it.
func New(runner Runner, config Config) (*Daemon, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("data dir cannot be empty")
	}
	if config.Interval == 0 {
		config.Interval = 15 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		runner:  runner,
		config:  config,
		watcher: watcher,
	}, nil
}

// Run performs an initial sync pass and then loops: one pass per interval
// tick, plus an immediate pass whenever the property cache file is removed.
// Blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.watcher.Close()

	if err := d.watcher.Add(d.config.DataDir); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}

	d.config.Logger.Printf("Daemon started: interval=%s watching=%s",
		d.config.Interval, d.config.DataDir)

	d.pass(ctx)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("Shutdown signal received, stopping daemon")
			return ctx.Err()

		case <-ticker.C:
			d.pass(ctx)

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if d.isCacheInvalidation(event) {
				d.config.Logger.Printf("Property cache removed (%s), syncing now", event.Name)
				d.pass(ctx)
				ticker.Reset(d.config.Interval)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// pass runs one sync pass, logging failures instead of stopping.
func (d *Daemon) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := d.runner.RunPass(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.config.Logger.Printf("Sync pass failed: %v", err)
	}
}

// isCacheInvalidation reports whether event is a removal of the property
// cache file. Rename counts: editors and rm both produce it.
func (d *Daemon) isCacheInvalidation(event fsnotify.Event) bool {
	if d.config.CacheFile == "" {
		return false
	}
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Base(event.Name) == d.config.CacheFile
}

// NewLogger returns a daemon logger. When logFile is set, output goes
// through a size-rotated file; otherwise stderr.
func NewLogger(logFile string) *log.Logger {
	if logFile == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[daemon] ", log.LstdFlags)
}
