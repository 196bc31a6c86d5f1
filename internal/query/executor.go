// Package query answers navigation requests: it picks the file to read,
// makes sure the index behind it is ready, runs the query tool and parses
// its output into symbol records.
package query

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"tagnav/internal/logging"
	"tagnav/internal/notify"
	"tagnav/internal/process"
	"tagnav/internal/snapshot"
	"tagnav/internal/symbols"
	"tagnav/internal/tags"
)

// Indexer keeps tag databases ready. *tags.Manager implements it.
type Indexer interface {
	EnsureIndex(ctx context.Context, basePath string, forceUpdate bool) (bool, error)
	UpdateSingleFile(ctx context.Context, fileName string) (bool, error)
}

// Options configures an Executor.
type Options struct {
	Global       string // query executable, default "global"
	Availability *tags.Availability
	Notifier     notify.Notifier
	Logger       *slog.Logger
}

// Executor runs symbol queries. Tool problems never surface as errors: a
// query that cannot be answered returns nil records, while one that ran and
// matched nothing returns an empty slice. The only error returned is the
// caller's own context error.
//
// Queries for documents sharing a base directory are serialized, which
// also covers that directory's staging area.
type Executor struct {
	runner   process.Runner
	indexer  Indexer
	resolver *snapshot.Resolver
	global   string
	avail    *tags.Availability
	notifier notify.Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	bases map[string]chan struct{}
}

// NewExecutor creates an Executor.
func NewExecutor(runner process.Runner, indexer Indexer, resolver *snapshot.Resolver, opts Options) *Executor {
	if opts.Global == "" {
		opts.Global = "global"
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Executor{
		runner:   runner,
		indexer:  indexer,
		resolver: resolver,
		global:   opts.Global,
		avail:    opts.Availability,
		notifier: opts.Notifier,
		logger:   logging.OrNop(opts.Logger),
		bases:    make(map[string]chan struct{}),
	}
}

// DocumentSymbols lists the symbols declared in doc. Dirty documents are
// snapshotted and indexed on their own; record paths that point at the
// snapshot are rewritten to the document's path.
func (e *Executor) DocumentSymbols(ctx context.Context, doc snapshot.Document) ([]symbols.Record, error) {
	return e.withBase(ctx, doc.Base(), func(ctx context.Context) ([]symbols.Record, error) {
		snap, err := e.resolver.Resolve(doc)
		if err != nil {
			e.logger.Warn("document symbols skipped", "error", err)
			return nil, nil
		}

		// A snapshot is indexed in its staging directory so the workspace
		// index never sees the unsaved text.
		base := doc.Base()
		if snap.Materialized() {
			base = filepath.Dir(snap.MaterializedPath)
		}

		var ready bool
		if snap.Materialized() {
			ready, err = e.indexer.UpdateSingleFile(ctx, snap.MaterializedPath)
		} else {
			ready, err = e.indexer.EnsureIndex(ctx, base, false)
		}
		if err != nil || !ready {
			return nil, err
		}

		records, err := e.run(ctx, base, "-f", snap.MaterializedPath)
		if err != nil {
			return nil, err
		}
		for i := range records {
			if samePath(records[i].Path, snap.MaterializedPath) {
				records[i].Path = snap.OriginalPath
			}
		}
		return records, nil
	})
}

// Definitions finds where word is defined in the index covering doc.
func (e *Executor) Definitions(ctx context.Context, doc snapshot.Document, word string) ([]symbols.Record, error) {
	return e.lookup(ctx, doc, "-x", word)
}

// References finds where word is used in the index covering doc.
func (e *Executor) References(ctx context.Context, doc snapshot.Document, word string) ([]symbols.Record, error) {
	return e.lookup(ctx, doc, "-rx", word)
}

func (e *Executor) lookup(ctx context.Context, doc snapshot.Document, flag, word string) ([]symbols.Record, error) {
	if word == "" {
		return nil, nil
	}
	base := doc.Base()
	return e.withBase(ctx, base, func(ctx context.Context) ([]symbols.Record, error) {
		ready, err := e.indexer.EnsureIndex(ctx, base, false)
		if err != nil || !ready {
			return nil, err
		}
		return e.run(ctx, base, flag, word)
	})
}

// run executes one query in base and parses the output. Paths in the
// output are relative to base and come back absolute. A query that ran
// returns a non-nil slice, empty when nothing matched; nil means no answer.
func (e *Executor) run(ctx context.Context, base string, args ...string) ([]symbols.Record, error) {
	if e.avail != nil && !e.avail.Available() {
		return nil, nil
	}

	res, runErr := e.runner.Run(ctx, e.global, args, base)
	err := process.CheckExit(e.global, res, runErr)

	var failed *process.ToolFailedError
	switch {
	case err == nil:
	case process.IsNotFound(err):
		if e.avail != nil {
			e.avail.ReportMissing(ctx)
		}
		return nil, nil
	case errors.As(err, &failed):
		e.logger.Warn("query failed", "base", base, "args", args, "error", err)
		e.notifier.Info("Some error occurred: " + err.Error())
		return nil, nil
	default:
		return nil, err
	}
	if diag := res.Diagnostics(); diag != "" {
		e.logger.Warn("query diagnostics", "base", base, "args", args, "stderr", diag)
	}

	records, perr := symbols.ParseReader(bytes.NewReader(res.Stdout))
	for _, le := range symbols.Skipped(perr) {
		e.logger.Warn("skipped malformed tag line", "line", le.Line, "reason", le.Reason, "text", le.Text)
	}
	if records == nil {
		records = []symbols.Record{}
	}
	for i := range records {
		if !filepath.IsAbs(records[i].Path) {
			records[i].Path = filepath.Join(base, records[i].Path)
		}
	}
	e.logger.Debug("query done", "base", base, "args", args, "records", len(records))
	return records, nil
}

// withBase runs fn holding the lock on base. fn is not cancelled with ctx:
// a caller that gives up returns ctx.Err() at once, and the lock is released
// only when fn and the tools it started have finished.
func (e *Executor) withBase(ctx context.Context, base string, fn func(context.Context) ([]symbols.Record, error)) ([]symbols.Record, error) {
	unlock, err := e.lock(ctx, base)
	if err != nil {
		return nil, err
	}

	type result struct {
		records []symbols.Record
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer unlock()
		records, err := fn(context.WithoutCancel(ctx))
		done <- result{records, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.records, r.err
	}
}

// lock serializes work on one base directory, giving up when ctx ends.
func (e *Executor) lock(ctx context.Context, base string) (func(), error) {
	e.mu.Lock()
	sem, ok := e.bases[base]
	if !ok {
		sem = make(chan struct{}, 1)
		e.bases[base] = sem
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
