package chain

import (
	"context"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeData bundles the EIP-1559 fee parameters read from the network.
type FeeData struct {
	GasTipCap *big.Int
	GasFeeCap *big.Int
	BaseFee   *big.Int
}

// Client defines the read/write surface the operation layer needs from a
// chain endpoint. Implementations must be safe for concurrent use by
// independent conversations.
type Client interface {
	// ChainID returns the network identifier used for transaction signing.
	ChainID(ctx context.Context) (*big.Int, error)
	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)
	// BalanceAt returns the native balance of the address at the latest block.
	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
	// PendingNonceAt returns the next nonce for the address including
	// pending transactions. The batch executor reads this exactly once per
	// batch and assigns subsequent nonces itself.
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	// FeeData reads the current fee market parameters.
	FeeData(ctx context.Context) (FeeData, error)
	// EstimateGas estimates the gas needed to execute the call.
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	// SendTransaction broadcasts a signed transaction. Once broadcast a
	// transaction cannot be retracted, even if the caller's context is
	// cancelled afterwards.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// WaitMined blocks until the transaction is included or ctx is done.
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// CallContract executes a read-only contract call at the latest block.
	CallContract(ctx context.Context, msg gethcore.CallMsg) ([]byte, error)
	// BlockLogs returns all logs emitted within the given block.
	BlockLogs(ctx context.Context, blockNumber uint64) ([]types.Log, error)
	// BlockByNumber fetches a full block; nil number means latest.
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	// Close releases network connections held by the client.
	Close()
}
