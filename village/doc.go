// Package village defines the village data model shared by every layer of the
// store: the Village type and its raw Record form, the shape validator, the
// error taxonomy and the structured Result returned to outer callers.
//
// # Shape rules
//
// A record is valid when it has a playerInfo mapping, a maps list and a
// privateState mapping, and every map entry is a mapping carrying oil, steel
// and an items mapping while carrying neither of the legacy stone or food
// fields:
//
//	res := village.Validate(rec)
//	if !res.Valid() {
//		return village.InvalidRecord(id, res.Err())
//	}
//
// # Errors
//
// Store errors are go-errors values with a category and a text code. Use the
// Is* helpers rather than comparing messages:
//
//	if village.IsNotFound(err) { ... }
//	if village.IsBackendUnavailable(err) { ... }
package village
