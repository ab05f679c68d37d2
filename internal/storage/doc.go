// Package storage persists transcoded artifacts and issues expiring links to them.
//
// Two backends implement Store. The filesystem backend keeps artifacts and a
// JSON metadata sidecar under a directory and signs links that the intake
// server verifies before serving the file. The s3 backend stores objects in a
// bucket and presigns GET requests. Both report a missing key as ErrNotFound so
// callers never inspect backend error codes. Writes overwrite; concurrent
// writers to one key resolve last-write-wins.
package storage
