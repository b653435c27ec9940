// Package app assembles the bridge daemon.
//
// The coordinator in services/bridge owns the lock record registry and the
// gated mint and release flows. Storage backends live under storage/, the
// asset ledger clients under ../chain, and the HTTP surface under httpapi.
// Background workers implement system.Service and are supervised by a
// system.Manager.
package app
