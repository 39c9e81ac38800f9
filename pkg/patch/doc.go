// Package patch parses diff output in the unified and context formats and
// applies the resulting hunks to documents.
//
// Parse and ParseString turn a patch stream into a slice of *Diff values, one
// per file header pair, each with its ordered hunks. Apply and ApplyText run
// those hunks against a document, and ApplyToMemory and ApplyFilesystem drive
// whole multi-file patches against a map of files or a directory tree.
//
// Failures are reported as *Error values whose Code can be matched with
// errors.Is against the Err* sentinels.
package patch
