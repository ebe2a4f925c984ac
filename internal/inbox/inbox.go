// Package inbox publishes request files dropped into a watched directory.
//
// Every "*.json" file at the inbox root is decoded as a publish request and
// published. The outcome is written to results/<name>.<job>.json and the
// request is moved to processed/ (or failed/ when it could not be decoded or
// the publish was rejected).
package inbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/publisher"
	"github.com/starford/mdpub/internal/storage"
)

// Directories created under the inbox root.
const (
	DirProcessed = "processed"
	DirFailed    = "failed"
	DirResults   = "results"
)

const requestExt = ".json"

// Publisher is the part of the publishing service the inbox drives.
type Publisher interface {
	Publish(ctx context.Context, req *models.PublishRequest, itemID string) ([]publisher.Outcome, error)
}

// EventCallback is called after each processed request file with the job id
// and the request path relative to the inbox root.
type EventCallback func(jobID, path string)

// Inbox processes request files one at a time.
type Inbox struct {
	store    storage.Provider
	pub      Publisher
	logger   *slog.Logger
	debounce time.Duration
	onDone   EventCallback

	mu sync.Mutex // serializes sweeps
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) { in.debounce = d }
}

// WithCallback registers cb to run after each processed file.
func WithCallback(cb EventCallback) Option {
	return func(in *Inbox) { in.onDone = cb }
}

// New creates an Inbox over store.
func New(store storage.Provider, pub Publisher, opts ...Option) *Inbox {
	in := &Inbox{
		store:    store,
		pub:      pub,
		logger:   slog.Default(),
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Result is the document written for each processed request.
type Result struct {
	JobID    string              `json:"job_id"`
	Source   string              `json:"source"`
	Checksum string              `json:"checksum"`
	Finished time.Time           `json:"finished"`
	Outcomes []publisher.Summary `json:"outcomes,omitempty"`
	Errors   []string            `json:"errors,omitempty"`
}

// Sync processes every request file currently waiting in the inbox, oldest
// first. It returns the number of files processed.
func (in *Inbox) Sync(ctx context.Context) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	entries, err := in.store.List("", requestExt)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		in.process(ctx, e)
		n++
	}
	return n, nil
}

// process publishes one request file and files away the request and result.
func (in *Inbox) process(ctx context.Context, e storage.Entry) {
	path := e.Path
	jobID := uuid.NewString()
	logger := in.logger.With(slog.String("job", jobID), slog.String("path", path))
	res := Result{JobID: jobID, Source: path, Checksum: e.Checksum}
	dest := DirProcessed

	data, err := in.store.Read(path)
	if err != nil {
		logger.Warn("inbox: read failed", slog.String("error", err.Error()))
		return
	}
	req, err := models.DecodePublishRequest(data)
	if err != nil {
		logger.Warn("inbox: decode failed", slog.String("error", err.Error()))
		res.Errors = []string{"Unable to decode publish request: " + err.Error()}
		dest = DirFailed
	} else {
		outcomes, err := in.pub.Publish(ctx, req, "")
		if err != nil {
			logger.Warn("inbox: publish rejected", slog.String("error", err.Error()))
			res.Errors = apperr.MessagesOf(err)
			dest = DirFailed
		}
		if len(outcomes) > 0 {
			res.Outcomes = publisher.Summaries(outcomes)
		}
	}
	res.Finished = time.Now().UTC()

	base := strings.TrimSuffix(filepath.Base(path), requestExt)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logger.Error("inbox: encode result failed", slog.String("error", err.Error()))
		return
	}
	if err := in.store.Write(filepath.Join(DirResults, base+"."+jobID+requestExt), out); err != nil {
		logger.Error("inbox: write result failed", slog.String("error", err.Error()))
		return
	}
	if err := in.store.Move(path, filepath.Join(dest, base+"."+jobID+requestExt)); err != nil {
		logger.Error("inbox: move request failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("inbox: processed", slog.String("dest", dest), slog.Int("records", len(res.Outcomes)))
	if in.onDone != nil {
		in.onDone(jobID, path)
	}
}

// Watch processes waiting requests, then watches the inbox root until ctx is
// cancelled. Bursts of file events are debounced into one sweep.
func (in *Inbox) Watch(ctx context.Context) error {
	root, err := in.store.Abs("")
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		return err
	}
	in.logger.Info("inbox: watching", slog.String("root", root))

	if _, err := in.Sync(ctx); err != nil {
		in.logger.Warn("inbox: initial sync failed", slog.String("error", err.Error()))
	}

	var sweepTimer *time.Timer
	var sweepCh <-chan time.Time
	scheduleSweep := func() {
		if sweepTimer == nil {
			sweepTimer = time.NewTimer(in.debounce)
			sweepCh = sweepTimer.C
		} else {
			sweepTimer.Reset(in.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if sweepTimer != nil {
				sweepTimer.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case <-sweepCh:
			if _, err := in.Sync(ctx); err != nil && ctx.Err() == nil {
				in.logger.Warn("inbox: sync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, requestExt) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleSweep()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
