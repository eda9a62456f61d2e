// Package common provides the configuration structures and logging utilities
// shared by the document server, its transports and the command line client.
//
// Key Components:
//
//   - ServerConfig: configuration of the document server (databases, storage
//     engine, snapshot directory, endpoint, log level).
//
//   - ClientConfig: configuration for client transports, controlling endpoints,
//     timeouts and retry behavior.
//
//   - Logger: custom implementation of dragonboat's logger.ILogger that gives
//     all named loggers ("txn", "store", "server", ...) one consistent format.
package common
