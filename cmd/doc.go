// Package cmd implements the command-line interface of dTxn. It provides a
// hierarchical command structure for running the document server and for
// running transactions against it as a client.
//
// The package is organized into several subpackages:
//
//   - doc: Transaction commands (get, put, update, map, del) and the perf benchmark
//   - serve: Commands for starting and configuring the document server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dtxn -help for a list of all commands.
package cmd
