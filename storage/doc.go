// Package storage defines the contracts implemented by persistence backends.
//
// A Backend stores saved villages. The document store adapters and the
// flat-file adapter all implement it, which lets the store use any of them as
// its primary tier and the flat-file adapter as the write fallback.
//
// A BindingStore keeps the identity to village mapping written at first login.
package storage
