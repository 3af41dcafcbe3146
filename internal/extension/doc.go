// Package extension defines the hooks a binder extension can implement and
// the registry that holds them.
//
// An extension is any value; the registry inspects which capability
// interfaces it satisfies and files it under each. The binder always asks
// extensions first, in registration order, and falls back to its built-in
// policy only when none of them produces a result.
package extension
