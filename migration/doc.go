// Package migration upgrades villages to the current schema version.
//
// The store only depends on the Migrator interface. Engine is the stock
// implementation: an ordered list of steps, each stamping its version on the
// village once applied, so a second run over the same village does nothing.
package migration
