package stylus

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// OverrideAccount specifies the fields of an account to override for the
// duration of a simulated call.
type OverrideAccount struct {
	Code    []byte
	Balance *big.Int
}

// StateOverride maps addresses to their overridden account state.
type StateOverride map[common.Address]OverrideAccount

// ChainProvider is the remote-chain surface this package depends on. It is
// satisfied by RPCProvider; tests substitute in-memory implementations.
type ChainProvider interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// CallContractWithOverrides performs a read-only call with the given
	// account state substituted for the duration of the call.
	CallContractWithOverrides(ctx context.Context, msg ethereum.CallMsg, overrides StateOverride) ([]byte, error)
}

// RPCProvider implements ChainProvider over a go-ethereum RPC connection.
type RPCProvider struct {
	*ethclient.Client
	geth *gethclient.Client
}

// DialProvider connects to an RPC endpoint.
func DialProvider(ctx context.Context, rawurl string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return NewRPCProvider(c), nil
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(c *rpc.Client) *RPCProvider {
	return &RPCProvider{
		Client: ethclient.NewClient(c),
		geth:   gethclient.New(c),
	}
}

// CallContractWithOverrides performs an eth_call with state overrides via the
// geth client extensions.
func (p *RPCProvider) CallContractWithOverrides(ctx context.Context, msg ethereum.CallMsg, overrides StateOverride) ([]byte, error) {
	gethOverrides := make(map[common.Address]gethclient.OverrideAccount, len(overrides))
	for addr, acct := range overrides {
		gethOverrides[addr] = gethclient.OverrideAccount{
			Code:    acct.Code,
			Balance: acct.Balance,
		}
	}
	return p.geth.CallContract(ctx, msg, nil, &gethOverrides)
}

// revertData extracts ABI-encoded revert data from an RPC call error, if the
// node attached any.
func revertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	switch data := de.ErrorData().(type) {
	case string:
		decoded, decodeErr := hexutil.Decode(data)
		if decodeErr != nil {
			return nil, false
		}
		return decoded, true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}
