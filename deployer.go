package stylus

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DeployState is the deployer's position in the submission lifecycle of a
// single transaction.
type DeployState uint8

const (
	// StateIdle means no transaction is in flight.
	StateIdle DeployState = iota

	// StateEstimatingGas means the gas requirement is being estimated.
	StateEstimatingGas

	// StateAwaitingFeeDecision means gas is known and a fee cap is being
	// selected.
	StateAwaitingFeeDecision

	// StateSubmitting means the signed transaction is being sent.
	StateSubmitting

	// StateAwaitingReceipt means the transaction is in the mempool.
	StateAwaitingReceipt

	// StateConfirmed means the transaction succeeded.
	StateConfirmed

	// StateReverted means the transaction was mined but reverted.
	StateReverted

	// StateTimedOut means receipt polling was cancelled before inclusion.
	StateTimedOut
)

func (s DeployState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEstimatingGas:
		return "estimating_gas"
	case StateAwaitingFeeDecision:
		return "awaiting_fee_decision"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingReceipt:
		return "awaiting_receipt"
	case StateConfirmed:
		return "confirmed"
	case StateReverted:
		return "reverted"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// deployTransitions lists the allowed successor states. Terminal states may
// only return to idle.
var deployTransitions = map[DeployState][]DeployState{
	StateIdle:                {StateEstimatingGas},
	StateEstimatingGas:       {StateAwaitingFeeDecision},
	StateAwaitingFeeDecision: {StateSubmitting},
	StateSubmitting:          {StateAwaitingReceipt},
	StateAwaitingReceipt:     {StateConfirmed, StateReverted, StateTimedOut},
	StateConfirmed:           {StateIdle},
	StateReverted:            {StateIdle},
	StateTimedOut:            {StateIdle},
}

// Deployer sequences deployment transactions for a single signer: fragment
// and root creation, factory submission, gas and fee selection, and receipt
// collection. Submissions are strictly sequential; the state machine guards
// against overlapping use.
type Deployer struct {
	provider ChainProvider
	signer   *Signer
	cfg      *Config
	state    DeployState
}

// NewDeployer creates a deployer for the given provider and signer.
func NewDeployer(provider ChainProvider, signer *Signer, opts ...Option) *Deployer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Deployer{
		provider: provider,
		signer:   signer,
		cfg:      cfg,
		state:    StateIdle,
	}
}

// State returns the deployer's current lifecycle state.
func (d *Deployer) State() DeployState {
	return d.state
}

// advance moves the state machine to next, failing if the transition is not
// allowed from the current state.
func (d *Deployer) advance(next DeployState) error {
	for _, allowed := range deployTransitions[d.state] {
		if next == allowed {
			d.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidState, d.state, next)
}

// reset returns a terminal state machine to idle.
func (d *Deployer) reset() {
	d.state = StateIdle
}

// DeployCode deploys a packaged code object and returns its address. Single
// contracts deploy directly; fragmented contracts deploy each fragment, then
// a root object referencing the fragment addresses. uncompressedSize is the
// normalized module length recorded in the root object.
func (d *Deployer) DeployCode(ctx context.Context, code Code, uncompressedSize uint32) (common.Address, error) {
	switch c := code.(type) {
	case *ContractCode:
		return d.deployCreation(ctx, c.Bytes())
	case *CodeFragments:
		addresses, err := d.DeployFragments(ctx, c)
		if err != nil {
			return common.Address{}, err
		}
		return d.DeployRoot(ctx, uncompressedSize, addresses)
	default:
		return common.Address{}, fmt.Errorf("stylus: unsupported code type %T", code)
	}
}

// DeployFragments submits one direct-creation transaction per fragment,
// sequentially, and returns the receipt addresses in deployment order. A
// failure after N successes leaves N orphaned fragment contracts; they are
// inert until referenced by a root object and are not cleaned up.
func (d *Deployer) DeployFragments(ctx context.Context, fragments *CodeFragments) ([]common.Address, error) {
	addresses := make([]common.Address, 0, fragments.FragmentCount())
	for i, fragment := range fragments.Fragments() {
		d.cfg.Logger.Debug("deploying code fragment", "index", i, "size", len(fragment.Bytes()))
		addr, err := d.deployCreation(ctx, fragment.Bytes())
		if err != nil {
			return nil, fmt.Errorf("stylus: fragment %d of %d: %w", i+1, fragments.FragmentCount(), err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// DeployRoot deploys the root object for previously deployed fragments and
// returns its address.
func (d *Deployer) DeployRoot(ctx context.Context, uncompressedSize uint32, addresses []common.Address) (common.Address, error) {
	root := NewRootCode(uncompressedSize, addresses)
	addr, err := d.deployCreation(ctx, root.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("stylus: root contract: %w", err)
	}
	return addr, nil
}

// DeployWithConstructor deploys through the factory's deploy entry, awaits
// the receipt, and extracts the new contract's address from the factory's
// ContractDeployed event. txValue must cover initValue plus the activation
// data fee the factory forwards.
func (d *Deployer) DeployWithConstructor(ctx context.Context, code Code, constructor Constructor, args []string, initValue, txValue *big.Int) (common.Address, error) {
	if initValue != nil && initValue.Sign() > 0 && !constructor.Payable {
		return common.Address{}, &ArgCoercionError{
			Err: fmt.Errorf("attempting to send ether to non-payable constructor"),
		}
	}
	calldata, err := BuildConstructorCalldata(code.Bytes(), constructor, args, initValue, d.cfg.Salt)
	if err != nil {
		return common.Address{}, err
	}

	d.cfg.Logger.Debug("deploying contract via factory", "factory", d.cfg.Factory)
	factory := d.cfg.Factory
	receipt, err := d.submit(ctx, &factory, txValue, calldata)
	if err != nil {
		return common.Address{}, err
	}
	return addressFromDeployLogs(receipt)
}

// deployCreation submits a direct-creation transaction wrapping code in the
// deployment prelude, and returns the created contract's address.
func (d *Deployer) deployCreation(ctx context.Context, code []byte) (common.Address, error) {
	calldata := NewDeploymentCalldata(code)
	receipt, err := d.submit(ctx, nil, nil, calldata.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, ErrMissingReceiptAddress
	}
	d.cfg.Logger.Info("deployed code", "address", receipt.ContractAddress, "tx", receipt.TxHash)
	return receipt.ContractAddress, nil
}

// EstimateFragmentsGas estimates the total gas for deploying all fragments.
// It does not include the root object or activation.
func (d *Deployer) EstimateFragmentsGas(ctx context.Context, fragments *CodeFragments) (uint64, error) {
	var total uint64
	for i, fragment := range fragments.Fragments() {
		calldata := NewDeploymentCalldata(fragment.Bytes())
		gas, err := d.provider.EstimateGas(ctx, ethereum.CallMsg{
			From: d.signer.Address(),
			Data: calldata.Bytes(),
		})
		if err != nil {
			return 0, fmt.Errorf("%w: fragment %d: %v", ErrGasEstimation, i, err)
		}
		total += gas
	}
	return total, nil
}

// EstimateRootGas estimates the gas for deploying the root object, using
// zero addresses as placeholders for the not-yet-deployed fragments.
func (d *Deployer) EstimateRootGas(ctx context.Context, uncompressedSize uint32, fragmentCount int) (uint64, error) {
	root := NewRootCode(uncompressedSize, make([]common.Address, fragmentCount))
	calldata := NewDeploymentCalldata(root.Bytes())
	gas, err := d.provider.EstimateGas(ctx, ethereum.CallMsg{
		From: d.signer.Address(),
		Data: calldata.Bytes(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: root contract: %v", ErrGasEstimation, err)
	}
	return gas, nil
}

// submit drives one transaction through the state machine: estimate gas,
// pick a fee, sign and send, then poll for the receipt until the context is
// done. to is nil for contract creation.
func (d *Deployer) submit(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	switch d.state {
	case StateConfirmed, StateReverted, StateTimedOut:
		d.reset()
	case StateIdle:
	default:
		return nil, fmt.Errorf("%w: submission in progress (%s)", ErrInvalidState, d.state)
	}

	// Errors before a transaction is in flight abandon the attempt; terminal
	// states stay observable until the next submission.
	fail := func(err error) (*types.Receipt, error) {
		d.reset()
		return nil, err
	}

	if err := d.advance(StateEstimatingGas); err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{
		From:  d.signer.Address(),
		To:    to,
		Value: value,
		Data:  data,
	}
	gas, err := d.provider.EstimateGas(ctx, msg)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrGasEstimation, err))
	}

	if err := d.advance(StateAwaitingFeeDecision); err != nil {
		return nil, err
	}
	feeCap := d.cfg.MaxFeePerGas
	if feeCap == nil {
		feeCap, err = d.provider.SuggestGasPrice(ctx)
		if err != nil {
			return fail(fmt.Errorf("stylus: querying gas price: %w", err))
		}
	}

	if err := d.advance(StateSubmitting); err != nil {
		return nil, err
	}
	nonce, err := d.provider.PendingNonceAt(ctx, d.signer.Address())
	if err != nil {
		return fail(fmt.Errorf("stylus: querying nonce: %w", err))
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: new(big.Int),
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        to,
		Value:     value,
		Data:      data,
	})
	signed, err := d.signer.SignTx(tx)
	if err != nil {
		return fail(fmt.Errorf("stylus: signing transaction: %w", err))
	}
	if err := d.provider.SendTransaction(ctx, signed); err != nil {
		return fail(fmt.Errorf("stylus: sending transaction: %w", err))
	}
	d.cfg.Logger.Debug("sent deploy tx", "hash", signed.Hash())

	if err := d.advance(StateAwaitingReceipt); err != nil {
		return nil, err
	}
	receipt, err := d.waitReceipt(ctx, signed.Hash())
	if err != nil {
		d.state = StateTimedOut
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		d.state = StateReverted
		return nil, &TxRevertedError{TxHash: signed.Hash()}
	}
	d.state = StateConfirmed
	return receipt, nil
}

// waitReceipt polls for a receipt at the configured interval until the
// context is cancelled. No timeout is imposed beyond the context's own.
func (d *Deployer) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(d.cfg.ReceiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := d.provider.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stylus: awaiting receipt for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// addressFromDeployLogs scans factory receipt logs for the ContractDeployed
// event and extracts the deployed address from its data.
func addressFromDeployLogs(receipt *types.Receipt) (common.Address, error) {
	eventID := deployerABI.Events["ContractDeployed"].ID
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != eventID {
			continue
		}
		values, err := deployerABI.Unpack("ContractDeployed", l.Data)
		if err != nil || len(values) != 1 {
			return common.Address{}, fmt.Errorf("%w: malformed event data", ErrNoContractAddress)
		}
		addr, ok := values[0].(common.Address)
		if !ok {
			return common.Address{}, fmt.Errorf("%w: malformed event data", ErrNoContractAddress)
		}
		return addr, nil
	}
	return common.Address{}, ErrNoContractAddress
}
