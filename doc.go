// Package lakota provides a versioned, content-addressed time-series
// store. Data is stored as ordered, schema-typed "frames" of columns under
// hierarchical labels ("series"), grouped into collections within a
// repository. History is an append-only, content-addressed revision graph
// that lets multiple concurrent writers commit lock-free against a shared
// object pod, branch and merge without coordination, and be squashed or
// garbage collected.
//
// The package is organised around four tightly coupled subsystems: the
// changelog (the revision graph), the commit (the columnar index of
// segments making up a revision, with its overlay-update algebra), the
// read planner (Series.Read, which collapses overlapping segments from
// multiple revisions), and the garbage collector (a two-phase mark-and-
// delay sweep safe against concurrent writers).
package lakota
