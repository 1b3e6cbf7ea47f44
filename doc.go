// Package sevenpar compresses independent input streams concurrently
// across a worker pool and assembles the results into a single 7z
// container, as one folder per file (parallel layout) or as shared solid
// folders, optionally spanning numbered output volumes.
//
// This package is a thin facade over the [core] subpackage.
//
// # Quick start
//
// Compress three in-memory streams with two workers:
//
//	a := sevenpar.NewArchiver(
//	    sevenpar.WithThreads(2),
//	    sevenpar.WithLevel(5),
//	)
//	defer a.Close()
//
//	items := []sevenpar.InputItem{
//	    {Reader: bytes.NewReader(dataA), Name: "a.bin", Size: uint64(len(dataA))},
//	    {Reader: bytes.NewReader(dataB), Name: "b.bin", Size: uint64(len(dataB))},
//	    {Reader: bytes.NewReader(dataC), Name: "c.bin", Size: uint64(len(dataC))},
//	}
//	err := a.CompressMultiple(ctx, items, out)
//
// Per-item progress, cancellation, and look-ahead run through a
// [Callback] registered with [WithCallback]. A non-empty password
// switches every folder (and the archive header) to a
// compress-then-encrypt coder chain.
package sevenpar
