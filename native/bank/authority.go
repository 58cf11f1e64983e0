package bank

import (
	"encoding/binary"

	"excelsior/crypto"
)

const (
	derivedDomain    = "excelsior/derived"
	associatedDomain = "excelsior/associated"

	// TagLedger derives the authority that owns the protocol vaults.
	TagLedger = "ledger"
	// TagDistributor derives the authority that owns a distribution vault.
	TagDistributor = "distributor"
)

// Authority is the capability presented to the token program when moving,
// minting or burning tokens. It is either an end-user signer, vouched for by
// the transport that authenticated the caller, or an authority derived from a
// record identity. Derived addresses have no private key, so only code holding
// the record identity can act for them.
type Authority struct {
	addr    crypto.Address
	derived bool
}

// Signer wraps an authenticated end-user address.
func Signer(addr crypto.Address) Authority {
	return Authority{addr: addr}
}

// Derive builds the authority for tag and seeds.
func Derive(tag string, seeds ...[]byte) Authority {
	return Authority{addr: DeriveAddress(tag, seeds...), derived: true}
}

// DeriveAddress computes keccak256(domain || tag || seeds...)[12:].
func DeriveAddress(tag string, seeds ...[]byte) crypto.Address {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, []byte(derivedDomain), []byte(tag))
	parts = append(parts, seeds...)
	digest := crypto.Keccak256(parts...)
	var addr crypto.Address
	copy(addr[:], digest[12:])
	return addr
}

// LedgerAuthority returns the derived authority owning the protocol vaults.
func LedgerAuthority() Authority { return Derive(TagLedger) }

// DistributorAuthority returns the derived authority owning the vault of a
// distribution round.
func DistributorAuthority(round uint64) Authority {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], round)
	return Derive(TagDistributor, seed[:])
}

// Address returns the account address the authority acts for.
func (a Authority) Address() crypto.Address { return a.addr }

// Derived reports whether the authority was derived from a record identity.
func (a Authority) Derived() bool { return a.derived }

// IsZero reports whether the authority is unset.
func (a Authority) IsZero() bool { return a.addr.IsZero() }

// AssociatedAccount returns the canonical token account id for owner and mint.
func AssociatedAccount(owner crypto.Address, mint string) crypto.Address {
	digest := crypto.Keccak256([]byte(associatedDomain), owner[:], []byte(normalizeSymbol(mint)))
	var id crypto.Address
	copy(id[:], digest[12:])
	return id
}
