package bind

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
)

// CabinetBuilder compresses every media group into its cabinet on a fixed
// pool of workers.
type CabinetBuilder struct{ stageInfo }

func NewCabinetBuilder() *CabinetBuilder {
	return &CabinetBuilder{stageInfo{
		name: "cabinet-builder",
		access: Access{
			Reads:  []Slot{SlotMedia, SlotFacades, SlotOutput, SlotSummary},
			Writes: []Slot{SlotOutput, SlotTransfers},
		},
	}}
}

// Applies skips cabinets of a package whose layout is suppressed; a module
// always carries its embedded cabinet.
func (s *CabinetBuilder) Applies(st *State) bool {
	return !st.SuppressLayout || st.IsModule()
}

type cabinetJob struct {
	media *Media
	files []*facade.Facade
	level cabinet.Level
}

type cabinetResult struct {
	data   []byte
	cached bool
	failed bool
}

func (s *CabinetBuilder) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	logger := ctxlog.FromContext(ctx)

	var jobs []cabinetJob
	for _, m := range st.Media.Media {
		files := st.Media.ByMedia[m.DiskID]
		if len(files) == 0 {
			continue
		}
		level := m.Level
		if level == "" {
			level = st.DefaultCompression
		}
		jobs = append(jobs, cabinetJob{media: m, files: files, level: level})
	}
	if len(jobs) == 0 {
		return ds
	}

	cache := cabinet.NewCache(st.FS, st.CabCachePath)
	results := make([]cabinetResult, len(jobs))
	queue := make(chan int)

	workers := st.Threads
	if workers > len(jobs) {
		workers = len(jobs)
	}

	// Workers never return an error: a failed group is reported to the sink
	// and the remaining groups still run.
	var g errgroup.Group
	for w := 1; w <= workers; w++ {
		workerID := w
		g.Go(func() error {
			workerLogger := logger.With("workerID", workerID)
			workerLogger.Debug("Worker started.")
			for i := range queue {
				results[i] = buildCabinet(workerLogger, st, cache, jobs[i])
			}
			workerLogger.Debug("Worker finished.")
			return nil
		})
	}
	for i := range jobs {
		queue <- i
	}
	close(queue)
	_ = g.Wait()

	cached := 0
	for i, job := range jobs {
		res := results[i]
		if res.failed {
			continue
		}
		if res.cached {
			cached++
		}
		m := job.media
		if m.Embedded() {
			st.Output.Streams[m.Cabinet[1:]] = res.data
			continue
		}

		tmp := st.temp("cab", m.Cabinet)
		if err := util.WriteFile(st.FS, tmp, res.data, 0o644); err != nil {
			ds.Errorf(diag.CodeIO, recordSource(m.Record), "failed to write cabinet %s: %v", m.Cabinet, err)
			continue
		}
		st.AddTransfer(FileTransfer{
			Source:      tmp,
			Destination: filepath.Join(resolveMediaLayout(st, m), m.Cabinet),
			Move:        true,
			Built:       true,
			Type:        TransferCabinet,
		})
	}
	logger.Debug("Built cabinets.", "count", len(jobs), "cached", cached, "workers", workers)
	return ds
}

// buildCabinet produces one cabinet, from the cache when possible. It runs
// on a worker goroutine and reports failures straight to the shared sink.
func buildCabinet(logger *slog.Logger, st *State, cache *cabinet.Cache, job cabinetJob) cabinetResult {
	m := job.media
	entries := make([]cabinet.Entry, len(job.files))
	for i, f := range job.files {
		entries[i] = cabinet.Entry{Source: f.Source, Name: f.ID}
	}

	key, keyed := cabinetKey(st, cache, job)
	if keyed {
		if data, ok := cache.Get(key); ok {
			logger.Debug("Reusing cached cabinet.", "cabinet", m.Cabinet, "key", key.String())
			return cabinetResult{data: data, cached: true}
		}
	}

	var buf bytes.Buffer
	if err := st.Codec.Compress(st.FS, entries, job.level, &buf); err != nil {
		var ds diag.Diagnostics
		ds.Errorf(diag.CodeCabinetFailed, recordSource(m.Record), "cabinet %s: %v", m.Cabinet, err)
		st.Sink.Append(ds...)
		logger.Error("Cabinet failed.", "cabinet", m.Cabinet, "error", err)
		return cabinetResult{failed: true}
	}

	if keyed {
		if err := cache.Put(key, buf.Bytes()); err != nil {
			var ds diag.Diagnostics
			ds.Warnf(diag.CodeCabinetCache, recordSource(m.Record), "cabinet %s was built but not cached: %v", m.Cabinet, err)
			st.Sink.Append(ds...)
		}
	}
	logger.Debug("Built cabinet.", "cabinet", m.Cabinet, "files", len(entries), "level", job.level)
	return cabinetResult{data: buf.Bytes()}
}

// cabinetKey digests the level and the bytes of every member. Without a
// cache, or when a member cannot be read, the cabinet is not keyed.
func cabinetKey(st *State, cache *cabinet.Cache, job cabinetJob) (digest.Digest, bool) {
	if cache == nil {
		return "", false
	}
	keys := make([]cabinet.KeyEntry, len(job.files))
	for i, f := range job.files {
		content, err := cabinet.FileDigest(st.FS, f.Source)
		if err != nil {
			return "", false
		}
		keys[i] = cabinet.KeyEntry{ID: f.ID, Name: f.LongName(), Size: f.Size, Content: content.String()}
	}
	return cabinet.Key(job.level, keys), true
}
