// Package http implements the document protocol transports on top of net/http.
//
// Key Components:
//
//   - httpClientTransport: implements transport.IDocClientTransport. Absolute
//     uris are used as given; paths are resolved against the configured
//     endpoints with round-robin selection. Transport level failures are
//     retried RetryCount times, received responses never are.
//
//   - httpServerTransport: implements transport.IDocServerTransport. It wraps
//     the registered handler with a metrics middleware (request counters per
//     method and status) and, at debug level, a logging middleware.
//
// Thread Safety:
//
//	The client transport is thread-safe after Connect. It uses an atomic
//	counter for the round-robin endpoint selection.
package http
