// Package bind turns a resolved intermediate into a package: the output
// relational model, its database, the cabinets holding its files and the
// list of file transfers that put everything in place.
//
// The work is split into stages run in a fixed order by an Orchestrator.
// Stages share an explicit State and declare which parts of it they read and
// write, so the orchestrator can reject a stage list in which a stage would
// observe data only a later stage produces. A stage may report many
// diagnostics; the orchestrator stops at the first stage boundary after any
// error was reported.
package bind
