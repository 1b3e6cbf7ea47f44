package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/crately/sevenpar/internal/codec"
	"github.com/crately/sevenpar/internal/sevenz"
	"github.com/crately/sevenpar/internal/volume"
)

// Thread and level clamps.
const (
	MinThreads = 1
	MaxThreads = 256
	MaxLevel   = 9
)

// lookAheadMax bounds how many items a single look-ahead drain accepts.
const lookAheadMax = 16

// Archiver compresses sets of independent input streams concurrently and
// assembles the results into a 7z container.
//
// Configuration is read-only during a compress call; reconfiguring
// concurrently with a running call is undefined and callers must
// serialize. The worker pool persists across calls until Close.
type Archiver struct {
	numThreads       int
	level            int
	method           sevenz.MethodID
	password         string
	rawKey           []byte
	rawIV            []byte
	solid            bool
	solidBlock       int
	segmentSize      uint64
	volumeSize       uint64
	volumePrefix     string
	progressInterval time.Duration
	callback         Callback
	factory          codec.Factory
	logger           *slog.Logger

	pool    *pool
	stats   counters
	callCtx context.Context
	aesKey  []byte
}

// NewArchiver returns an archiver with a single worker, level 5, and the
// LZMA method.
func NewArchiver(opts ...Option) *Archiver {
	a := &Archiver{
		numThreads: 1,
		level:      5,
		method:     sevenz.MethodLZMA,
		factory:    codec.Default,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archiver) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

func (a *Archiver) callbacks() callbacks {
	return callbacks{cb: a.callback}
}

// SetNumThreads sets the worker count, clamped to [1, 256]; 0 becomes 1.
func (a *Archiver) SetNumThreads(n int) {
	if n < MinThreads {
		n = MinThreads
	}
	if n > MaxThreads {
		n = MaxThreads
	}
	a.numThreads = n
}

// SetLevel sets the compression level, clamped to [0, 9].
func (a *Archiver) SetLevel(level int) {
	if level < 0 {
		level = 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	a.level = level
}

// SetMethod sets the compression method id. Unrecognized ids surface as
// codec failures when the factory is asked for an encoder.
func (a *Archiver) SetMethod(id sevenz.MethodID) {
	a.method = id
}

// SetPassword enables password-based encryption; the empty string clears
// it. Setting a password supersedes raw key material.
func (a *Archiver) SetPassword(password string) {
	a.password = password
}

// SetRawKey installs raw key material and an IV as an alternative to a
// password; the last of SetPassword and SetRawKey wins. Raw keys are not
// representable in the container header for the standard method ids (the
// header only encodes password-based derivation), so they are honored
// only alongside a non-standard method id.
func (a *Archiver) SetRawKey(key, iv []byte) {
	a.rawKey = append([]byte(nil), key...)
	a.rawIV = append([]byte(nil), iv...)
	if len(key) > 0 {
		a.password = ""
	}
}

// SetSolid toggles solid layout: files are concatenated into shared
// folders instead of one folder per file.
func (a *Archiver) SetSolid(on bool) {
	a.solid = on
}

// SetSolidBlockSize bounds how many files share one solid folder;
// 0 means unbounded (a single folder).
func (a *Archiver) SetSolidBlockSize(files int) {
	if files < 0 {
		files = 0
	}
	a.solidBlock = files
}

// SetSegmentSize records the segment size hint.
func (a *Archiver) SetSegmentSize(bytes uint64) {
	a.segmentSize = bytes
}

// SetVolumeSize sets the per-volume byte budget; 0 disables splitting.
func (a *Archiver) SetVolumeSize(bytes uint64) {
	a.volumeSize = bytes
}

// SetVolumePrefix sets the base output path for volume files. Volume
// splitting is active only when both the prefix and a non-zero volume
// size are configured.
func (a *Archiver) SetVolumePrefix(prefix string) {
	a.volumePrefix = prefix
}

// SetCallback registers the progress/cancel/look-ahead collaborator.
func (a *Archiver) SetCallback(cb Callback) {
	a.callback = cb
}

// SetProgressUpdateInterval throttles intermediate OnItemProgress calls;
// 0 disables them.
func (a *Archiver) SetProgressUpdateInterval(d time.Duration) {
	a.progressInterval = d
}

// Code compresses a single stream. With one worker the codec runs
// directly and out receives the raw compressed stream; with more, the
// input is wrapped into a one-item CompressMultiple and out receives a
// container.
func (a *Archiver) Code(ctx context.Context, in io.Reader, out io.Writer, sizeHint uint64) error {
	if in == nil || out == nil {
		return fmt.Errorf("%w: nil stream", ErrInvalidArgument)
	}
	if a.numThreads <= 1 {
		enc, err := a.factory.NewEncoder(a.method, a.level)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCodecFailure, err)
		}
		if err := enc.Code(out, in, sizeHint); err != nil {
			return mapPipelineErr(err)
		}
		return nil
	}
	return a.CompressMultiple(ctx, []InputItem{{Reader: in, Size: sizeHint}}, out)
}

// CompressMultiple compresses items concurrently and writes one archive
// to out, or to numbered volume files when volume splitting is
// configured (out may then be nil).
//
// The returned error reflects the call status: nil when every job
// succeeded, ErrPartialSuccess when the archive was written without the
// failed items, ErrCompressionFailed when no job succeeded (or the
// ErrInputTooLarge error instead, when an oversized solid block was the
// first failure), and ErrCancelled when the callback or ctx cancelled the
// run.
func (a *Archiver) CompressMultiple(ctx context.Context, items []InputItem, out io.Writer) error {
	useVolumes := a.volumeSize > 0 && a.volumePrefix != ""
	if len(items) == 0 {
		return fmt.Errorf("%w: no input items", ErrInvalidArgument)
	}
	if out == nil && !useVolumes {
		return fmt.Errorf("%w: nil output", ErrInvalidArgument)
	}
	for i := range items {
		if items[i].Reader == nil {
			return fmt.Errorf("%w: item %d has no reader", ErrInvalidArgument, i)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cb := a.callbacks()
	a.prepareEncryption(cb)

	all := items
	if extra := a.drainLookAhead(cb, len(items)); len(extra) > 0 {
		all = make([]InputItem, 0, len(items)+len(extra))
		all = append(all, items...)
		all = append(all, extra...)
	}

	jobs := a.buildJobs(all)
	a.stats.reset(len(all))
	a.callCtx = ctx
	a.ensurePool()

	a.log().Debug("compressing",
		"items", len(all),
		"jobs", len(jobs),
		"threads", a.numThreads,
		"method", a.method.String(),
		"level", a.level,
		"solid", a.solid)

	a.pool.reset(jobs)
	a.pool.dispatch()
	a.pool.wait()

	var succeeded, failed, cancelled int
	var firstErr error
	for _, j := range jobs {
		switch {
		case j.err == nil:
			succeeded++
		case errors.Is(j.err, ErrCancelled):
			cancelled++
		default:
			failed++
			if firstErr == nil {
				firstErr = j.err
			}
		}
	}
	if cancelled > 0 {
		return ErrCancelled
	}
	if succeeded == 0 {
		if errors.Is(firstErr, ErrInputTooLarge) {
			return firstErr
		}
		cb.OnError(0, ErrCompressionFailed, "all compression jobs failed")
		return ErrCompressionFailed
	}

	sink := out
	var splitter *volume.Splitter
	if useVolumes {
		splitter = volume.NewSplitter(a.volumePrefix, a.volumeSize)
		sink = splitter
	}
	if err := a.writeArchive(sink, jobs); err != nil {
		if splitter != nil {
			_ = splitter.Close()
		}
		cb.OnError(0, err, "archive assembly failed")
		return err
	}
	if splitter != nil {
		if err := splitter.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkFailure, err)
		}
		a.log().Debug("volumes written", "count", splitter.VolumeCount(), "prefix", a.volumePrefix)
	}

	if failed > 0 {
		return ErrPartialSuccess
	}
	return nil
}

// CompressToMemory is CompressMultiple into a returned byte slice. On
// ErrPartialSuccess the partial archive is returned alongside the error.
func (a *Archiver) CompressToMemory(ctx context.Context, items []InputItem) ([]byte, error) {
	var buf bytes.Buffer
	err := a.CompressMultiple(ctx, items, &buf)
	if err != nil && !errors.Is(err, ErrPartialSuccess) {
		return nil, err
	}
	return buf.Bytes(), err
}

// Statistics returns the basic completion counters.
func (a *Archiver) Statistics() (itemsCompleted, itemsFailed int, totalIn, totalOut uint64) {
	s := a.stats.snapshot()
	return s.ItemsCompleted, s.ItemsFailed, s.TotalIn, s.TotalOut
}

// DetailedStatistics returns the full snapshot including rates and
// estimates.
func (a *Archiver) DetailedStatistics() Statistics {
	return a.stats.snapshot()
}

// Close stops the worker pool. The archiver is reusable afterwards; a
// new pool starts on the next call.
func (a *Archiver) Close() error {
	if a.pool != nil {
		a.pool.shutdown()
		a.pool = nil
	}
	return nil
}

// prepareEncryption derives the call-scoped AES key. A password always
// wins; raw key material is accepted only with a non-standard method id
// and otherwise raises an error-hook notification.
func (a *Archiver) prepareEncryption(cb callbacks) {
	a.aesKey = nil
	switch {
	case a.password != "":
		a.aesKey = codec.DeriveKey(a.password, nil, codec.NumCyclesPower)
	case len(a.rawKey) > 0:
		if isStandardMethod(a.method) {
			cb.OnError(0, ErrInvalidArgument,
				"raw key material is not representable in the header for standard methods; writing unencrypted")
			a.log().Warn("raw key ignored", "method", a.method.String())
		} else if len(a.rawKey) == 32 {
			a.aesKey = a.rawKey
		}
	}
}

func isStandardMethod(id sevenz.MethodID) bool {
	switch id {
	case sevenz.MethodCopy, sevenz.MethodLZMA, sevenz.MethodLZMA2,
		sevenz.MethodDeflate, sevenz.MethodZstd, sevenz.MethodLZ4:
		return true
	}
	return false
}

// drainLookAhead asks the callback for extra items exactly once, before
// the first worker assignment.
func (a *Archiver) drainLookAhead(cb callbacks, cursor int) []InputItem {
	max := 2 * a.numThreads
	if max > lookAheadMax {
		max = lookAheadMax
	}
	extra, err := cb.GetNextItems(cursor, max)
	if err != nil {
		a.log().Warn("look-ahead drain failed", "error", err)
		return nil
	}
	if len(extra) > max {
		extra = extra[:max]
	}
	usable := extra[:0:0]
	for _, item := range extra {
		if item.Reader != nil {
			usable = append(usable, item)
		}
	}
	if len(usable) > 0 {
		a.log().Debug("look-ahead items queued", "count", len(usable))
	}
	return usable
}

// buildJobs partitions items into jobs: one item per job in parallel
// layout, solid blocks otherwise.
func (a *Archiver) buildJobs(items []InputItem) []*job {
	block := 1
	if a.solid {
		block = a.solidBlock
		if block <= 0 {
			block = len(items)
		}
	}
	jobs := make([]*job, 0, (len(items)+block-1)/block)
	for start := 0; start < len(items); start += block {
		end := start + block
		if end > len(items) {
			end = len(items)
		}
		jobs = append(jobs, &job{
			index:     len(jobs),
			firstItem: start,
			items:     items[start:end],
		})
	}
	return jobs
}

// ensurePool (re)creates the worker pool when absent or sized for a
// different thread count.
func (a *Archiver) ensurePool() {
	if a.pool != nil && a.pool.size() == a.numThreads {
		return
	}
	if a.pool != nil {
		a.pool.shutdown()
	}
	a.pool = newPool(a.numThreads,
		func(j *job) { a.processJob(a.callCtx, j) },
		a.notifyComplete)
}

// notifyComplete is the completion notifier: it publishes the job's
// terminal state under the counters mutex and fires the per-item
// completion hooks.
func (a *Archiver) notifyComplete(j *job) {
	c := &a.stats
	c.mu.Lock()
	defer c.mu.Unlock()

	j.completed = true
	c.inProgress--
	if j.err != nil {
		c.itemsFailed += len(j.items)
	} else {
		c.itemsCompleted += len(j.items)
		c.totalIn += j.read
		c.totalOut += j.packSize
	}

	cb := a.callbacks()
	for i := range j.items {
		if j.err != nil {
			cb.OnItemComplete(j.firstItem+i, j.err, 0, 0)
		} else {
			cb.OnItemComplete(j.firstItem+i, nil, j.segSizes[i], j.packSize)
		}
	}
}
