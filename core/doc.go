// Package core implements the parallel multi-stream archiver: the worker
// pool and job dispatcher, the per-job compression pipeline, and the
// archive assembler that serializes compressed payloads and their
// descriptor database into a 7z container.
//
// The root sevenpar package re-exports the public surface; use core
// directly for the same API without the facade.
package core
