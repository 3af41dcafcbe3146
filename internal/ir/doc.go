// Package ir defines the intermediate model the binder consumes: a package
// made of sections holding ordered, type-tagged records.
//
// Records are flat key/value tuples. Stages of the bind pipeline read and
// mutate them in place; after output projection the relational output model
// becomes the source of truth and the intermediate is only kept for the
// snapshot written next to the build output.
package ir
