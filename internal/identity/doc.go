// Package identity maps identity names to their command history.
//
// The Store is a chained hash table keyed by name. Entries are created on
// first reference and live for the lifetime of the store; the number of
// distinct identities is capped at construction time.
package identity
