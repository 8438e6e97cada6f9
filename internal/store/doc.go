// Package store provides implementations of the license record store: a
// MongoDB-backed store for production and an in-memory store with identical
// semantics for tests and local development. Both enforce key uniqueness at
// insert time and implement HWID binding as an atomic conditional write.
package store
