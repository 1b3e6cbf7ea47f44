package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crately/sevenpar/internal/codec"
	"github.com/crately/sevenpar/internal/digest"
)

// solidSizeCap bounds the in-memory concatenation a solid block may
// occupy before compression.
const solidSizeCap = 4 << 30

// chainResult captures what a coder chain run leaves behind: the
// compression coder's properties blob, the encryption coder's properties
// blob (nil when unencrypted), and the compression coder's output size
// before padding.
type chainResult struct {
	props     []byte
	aesProps  []byte
	coderSize uint64
}

// processJob runs the per-job pipeline: cancellation poll, compression of
// the job's input through the configured chain, digest bookkeeping, and
// the per-item progress hooks.
func (a *Archiver) processJob(ctx context.Context, j *job) {
	a.stats.jobStarted()
	cb := a.callbacks()

	if ctx.Err() != nil || cb.ShouldCancel() {
		j.err = ErrCancelled
		return
	}

	cb.OnItemStart(j.firstItem, j.items[0].Name)

	var err error
	if len(j.items) == 1 {
		err = a.compressSingle(ctx, j)
	} else {
		err = a.compressBlock(ctx, j)
	}
	if err != nil {
		j.err = err
		cb.OnError(j.firstItem, err, "compression failed")
		return
	}
	cb.OnItemProgress(j.firstItem, j.read, j.packSize)
}

// compressSingle streams one input through the chain into the job's
// payload buffer.
func (a *Archiver) compressSingle(ctx context.Context, j *job) error {
	item := j.items[0]
	dr := digest.NewReader(item.Reader)
	src := &progressReader{
		ctx:      ctx,
		r:        dr,
		dr:       dr,
		sink:     &j.payload,
		cb:       a.callbacks(),
		index:    j.firstItem,
		interval: a.progressInterval,
		last:     time.Now(),
	}

	res, err := a.runChain(&j.payload, src, item.Size)
	if err != nil {
		return err
	}

	j.read = dr.BytesRead()
	j.segSizes = []uint64{j.read}
	j.segCRCs = []uint32{dr.Sum32()}
	j.chain = res
	j.packSize = uint64(j.payload.Len())
	return nil
}

// compressBlock concatenates a solid block's inputs into one bounded
// buffer, digests each segment, and compresses the whole buffer once.
func (a *Archiver) compressBlock(ctx context.Context, j *job) error {
	cb := a.callbacks()
	var concat bytes.Buffer
	j.segSizes = make([]uint64, len(j.items))

	budget := uint64(solidSizeCap)
	for i := range j.items {
		if i > 0 {
			cb.OnItemStart(j.firstItem+i, j.items[i].Name)
		}
		n, err := copyCapped(ctx, &concat, j.items[i].Reader, budget)
		if err != nil {
			return err
		}
		j.segSizes[i] = n
		budget -= n
	}

	data := concat.Bytes()
	j.segCRCs = make([]uint32, len(j.items))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(a.numThreads)
	var off uint64
	for i := range j.items {
		i := i
		seg := data[off : off+j.segSizes[i]]
		off += j.segSizes[i]
		g.Go(func() error {
			j.segCRCs[i] = digest.Sum(seg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	j.read = uint64(len(data))
	res, err := a.runChain(&j.payload, bytes.NewReader(data), j.read)
	if err != nil {
		return err
	}
	j.chain = res
	j.packSize = uint64(j.payload.Len())
	return nil
}

// runChain drives the configured chain (the compression encoder plus the
// optional encryption filter) from src into dst.
func (a *Archiver) runChain(dst *bytes.Buffer, src io.Reader, sizeHint uint64) (chainResult, error) {
	var res chainResult

	enc, err := a.factory.NewEncoder(a.method, a.level)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}

	var w io.Writer = dst
	var filter io.Closer
	if a.aesKey != nil {
		f, err := codec.NewAESFilter(a.aesKey)
		if err != nil {
			return res, fmt.Errorf("%w: %v", ErrCodecFailure, err)
		}
		fw, err := f.Writer(dst)
		if err != nil {
			return res, fmt.Errorf("%w: %v", ErrCodecFailure, err)
		}
		res.aesProps = f.Properties()
		w = fw
		filter = fw
	}

	cw := &countingWriter{w: w}
	if err := enc.Code(cw, src, sizeHint); err != nil {
		return res, mapPipelineErr(err)
	}
	if filter != nil {
		if err := filter.Close(); err != nil {
			return res, fmt.Errorf("%w: %v", ErrCodecFailure, err)
		}
	}

	res.props = enc.Properties()
	res.coderSize = cw.n
	return res, nil
}

func mapPipelineErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCancelled
	case errors.Is(err, ErrInputTooLarge):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
}

// copyCapped copies src to dst until EOF, failing once more than limit
// bytes would accumulate. It checks for context cancellation between
// reads.
func copyCapped(ctx context.Context, dst *bytes.Buffer, src io.Reader, limit uint64) (uint64, error) {
	buf := make([]byte, 32*1024)
	var written uint64
	for {
		if err := ctx.Err(); err != nil {
			return written, ErrCancelled
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			if uint64(nr) > limit-written {
				return written, ErrInputTooLarge
			}
			dst.Write(buf[:nr])
			written += uint64(nr)
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, fmt.Errorf("%w: %v", ErrCodecFailure, er)
		}
	}
}

// countingWriter counts bytes forwarded to the underlying writer.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

// progressReader relays reads while emitting throttled intermediate
// progress callbacks and honoring context cancellation.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	dr       *digest.Reader
	sink     *bytes.Buffer
	cb       callbacks
	index    int
	interval time.Duration
	last     time.Time
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if p.interval > 0 && time.Since(p.last) >= p.interval {
		p.last = time.Now()
		p.cb.OnItemProgress(p.index, p.dr.BytesRead(), uint64(p.sink.Len()))
	}
	return n, err
}
