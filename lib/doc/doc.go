// Package doc defines the JSON document model shared by the storage engines,
// the embedded store, the HTTP server and the transaction engine.
//
// A Document is a plain map decoded from JSON. Two fields carry meaning:
//
//   - "_id":  the identity of the document (required)
//   - "_rev": the opaque revision token of the stored version (optional).
//     A document without a revision has never been stored.
//
// Besides accessors for these fields the package offers a deep Clone, used to
// snapshot a document before it is handed to user code, and a structural Diff
// that ignores the identity and revision fields.
package doc
