// Package chain provides the Asset Ledger capability consumed by the bridge
// coordinator: transfer-in, transfer-out, mint, and burn for a fungible
// asset, each completing fully or failing as a unit.
package chain

import "context"

// Ledger is the external asset ledger the coordinator delegates all token
// movement to. The coordinator treats it as opaque: every call is synchronous
// and either fully succeeds or fails with no partial transfer and no hidden
// fees. Accounts and assets are identified by opaque address strings.
type Ledger interface {
	// TransferIn pulls amount of asset from the holder into bridge custody.
	// The holder must have approved the custody account beforehand.
	TransferIn(ctx context.Context, asset, from string, amount uint64) error

	// TransferOut sends amount of asset from bridge custody to the recipient.
	TransferOut(ctx context.Context, asset, to string, amount uint64) error

	// Mint creates amount of asset for the recipient.
	Mint(ctx context.Context, asset, to string, amount uint64) error

	// Burn destroys amount of asset belonging to the holder.
	Burn(ctx context.Context, asset, from string, amount uint64) error
}
