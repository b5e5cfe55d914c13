// Package contentapi provides a CRUD service for content items with
// attached binary media, split across a structured record store and a
// binary blob store.
//
// Items carry an opaque JSON body, an ordered list of media references,
// and a version used for optimistic concurrency: every mutation is a
// compare-and-swap on the record's version, so concurrent writers to the
// same id serialize without any in-process locking and the service can run
// as multiple independent instances. Deletes are tombstones; ids (UUIDv7,
// sortable by creation time) are never reused.
//
// Stores are pluggable behind the RecordStore and BlobStore interfaces:
// in-memory and PostgreSQL record stores, and in-memory, filesystem and S3
// blob stores live in the repo/ and storage/ subpackages. The api
// subpackage exposes the HTTP surface and config wires everything up from
// the environment.
package contentapi
