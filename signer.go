package stylus

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions with a single private key. All deployment
// traffic in a pipeline flows through one Signer, so nonce ordering is the
// caller's sequence order.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewSigner wraps a private key for the given chain.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
	}
}

// Address returns the signing account's address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer is bound to.
func (s *Signer) ChainID() *big.Int {
	return s.chainID
}

// SignTx signs a transaction with the wrapped key.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}
