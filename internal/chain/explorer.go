package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Explorer builds block-explorer links for transactions and addresses.
// A zero Explorer produces empty links so callers can degrade gracefully
// when no explorer is configured for the network.
type Explorer struct {
	base string
}

// NewExplorer creates an Explorer from a base URL such as
// "https://sepolia.etherscan.io".
func NewExplorer(base string) Explorer {
	return Explorer{base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// TxLink returns the explorer URL of a transaction, or "" when unset.
func (e Explorer) TxLink(hash common.Hash) string {
	if e.base == "" {
		return ""
	}
	return e.base + "/tx/" + hash.Hex()
}

// AddressLink returns the explorer URL of an address, or "" when unset.
func (e Explorer) AddressLink(address common.Address) string {
	if e.base == "" {
		return ""
	}
	return e.base + "/address/" + address.Hex()
}
