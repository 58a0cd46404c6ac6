// Package keydb defines the contract an indexing engine persists its state through, the
// height marker that lets it resume after a restart, and the shared error codes, options
// and logging setup.
//
// The concrete adapter lives in the redis subpackage: it applies batches of writes as one
// MULTI/EXEC group against a Redis or KeyDB server, stamps each batch with the current
// height under a reserved key, and replaces its shared connection after every batch.
// Package restapi surfaces an adapter over HTTP and cmd/keydbctl is the command line tool.
package keydb

// Height model
//
// The height marker is owned by the adapter, not the package: the engine calls SetHeight
// before Write, and Write stamps whatever value is current at commit time. On startup the
// engine calls RecoverHeight (or QueryHeight on a bare connection) with its genesis height;
// an absent or unreadable record yields that default, a record that is not 4 bytes is
// reported as MalformedHeightData and never silently replaced.
