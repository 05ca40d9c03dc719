// Package artifact manages the files agents produce in the output directory,
// such as charts written by the coder and slide decks written by the slides
// generator.
//
// Store works on any afero.Fs. NewDirStore roots it at a directory on disk;
// tests use an in-memory filesystem.
package artifact
