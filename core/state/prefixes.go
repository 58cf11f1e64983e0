package state

import "encoding/binary"

var (
	ledgerGlobalKey        = []byte("ledger/global")
	stakingPositionPrefix  = []byte("staking/position/")
	distributorPrefix      = []byte("distributor/round/")
	distributorClaimPrefix = []byte("distributor/claim/")
	bankMintPrefix         = []byte("bank/mint/")
	bankAccountPrefix      = []byte("bank/account/")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return buf
}

func positionKey(owner [20]byte) []byte { return prefixed(stakingPositionPrefix, owner[:]) }

func distributorKey(round uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], round)
	return prefixed(distributorPrefix, buf[:])
}

// claimRecordKey follows the distribution leaf convention and encodes the index
// little-endian.
func claimRecordKey(round, index uint64) []byte {
	var r, i [8]byte
	binary.BigEndian.PutUint64(r[:], round)
	binary.LittleEndian.PutUint64(i[:], index)
	return prefixed(distributorClaimPrefix, r[:], []byte{'/'}, i[:])
}

func mintKey(symbol string) []byte { return prefixed(bankMintPrefix, []byte(symbol)) }

func tokenAccountKey(id [20]byte) []byte { return prefixed(bankAccountPrefix, id[:]) }
