package stylus

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeProvider is an in-memory ChainProvider for tests. Creation receipts
// get deterministic CREATE addresses unless noReceiptAddr is set.
type fakeProvider struct {
	chainID  *big.Int
	nonce    uint64
	balance  *big.Int
	code     []byte
	gasPrice *big.Int

	estimateGas   func(msg ethereum.CallMsg) (uint64, error)
	call          func(msg ethereum.CallMsg) ([]byte, error)
	callOverrides func(msg ethereum.CallMsg, overrides StateOverride) ([]byte, error)

	sent     []*types.Transaction
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt

	noReceiptAddr bool
	revertAll     bool
	receiptLogs   []*types.Log
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		chainID:  big.NewInt(412346),
		balance:  new(big.Int).Lsh(big.NewInt(1), 128),
		gasPrice: big.NewInt(100_000_000),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (p *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chainID, nil
}

func (p *fakeProvider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return p.nonce, nil
}

func (p *fakeProvider) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return p.balance, nil
}

func (p *fakeProvider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return p.code, nil
}

func (p *fakeProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return p.gasPrice, nil
}

func (p *fakeProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if p.estimateGas != nil {
		return p.estimateGas(msg)
	}
	return 100_000, nil
}

func (p *fakeProvider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	p.sent = append(p.sent, tx)
	p.txs[tx.Hash()] = tx

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: tx.Hash(),
		Logs:   p.receiptLogs,
	}
	if p.revertAll {
		receipt.Status = types.ReceiptStatusFailed
	}
	if tx.To() == nil && !p.noReceiptAddr {
		from, err := types.Sender(types.LatestSignerForChainID(p.chainID), tx)
		if err != nil {
			return err
		}
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}
	p.receipts[tx.Hash()] = receipt
	p.nonce++
	return nil
}

func (p *fakeProvider) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	tx, ok := p.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (p *fakeProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, ok := p.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (p *fakeProvider) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if p.call != nil {
		return p.call(msg)
	}
	return nil, nil
}

func (p *fakeProvider) CallContractWithOverrides(ctx context.Context, msg ethereum.CallMsg, overrides StateOverride) ([]byte, error) {
	if p.callOverrides != nil {
		return p.callOverrides(msg, overrides)
	}
	return nil, nil
}

// fakeRPCError mimics a node revert error carrying ABI-encoded data, the
// shape rpc.DataError exposes.
type fakeRPCError struct {
	msg  string
	data string
}

func (e *fakeRPCError) Error() string { return e.msg }

func (e *fakeRPCError) ErrorData() interface{} { return e.data }

// testSigner returns a throwaway signer on the fake provider's chain.
func testSigner(p *fakeProvider) *Signer {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return NewSigner(key, p.chainID)
}
