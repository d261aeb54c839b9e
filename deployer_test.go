package stylus

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDeployFragmentsSequential(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	payload := make([]byte, 3*(DefaultMaxCodeSize-len(TagFragment))+10)
	fragments := NewCodeFragments(payload, DefaultMaxCodeSize)
	if fragments.FragmentCount() != 4 {
		t.Fatalf("fragment count = %d, want 4", fragments.FragmentCount())
	}

	addresses, err := deployer.DeployFragments(context.Background(), fragments)
	if err != nil {
		t.Fatalf("DeployFragments: %v", err)
	}
	if len(addresses) != 4 {
		t.Fatalf("address count = %d, want 4", len(addresses))
	}
	if len(provider.sent) != 4 {
		t.Fatalf("sent %d transactions, want 4", len(provider.sent))
	}

	seen := make(map[common.Address]bool)
	for i, tx := range provider.sent {
		if tx.To() != nil {
			t.Errorf("tx %d is not a creation transaction", i)
		}
		if tx.Nonce() != uint64(i) {
			t.Errorf("tx %d nonce = %d, want %d", i, tx.Nonce(), i)
		}
		want := NewDeploymentCalldata(fragments.Fragments()[i].Bytes()).Bytes()
		if !bytes.Equal(tx.Data(), want) {
			t.Errorf("tx %d calldata does not wrap fragment %d", i, i)
		}
		if seen[addresses[i]] {
			t.Errorf("duplicate fragment address %s", addresses[i])
		}
		seen[addresses[i]] = true
	}

	if deployer.State() != StateConfirmed {
		t.Errorf("state after success = %s, want confirmed", deployer.State())
	}
}

func TestDeployFragmentsMissingReceiptAddress(t *testing.T) {
	provider := newFakeProvider()
	provider.noReceiptAddr = true
	deployer := NewDeployer(provider, testSigner(provider))

	fragments := NewCodeFragments(make([]byte, DefaultMaxCodeSize), DefaultMaxCodeSize)
	_, err := deployer.DeployFragments(context.Background(), fragments)
	if !errors.Is(err, ErrMissingReceiptAddress) {
		t.Fatalf("expected ErrMissingReceiptAddress, got %v", err)
	}
}

func TestDeployRootLayout(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	addrs := []common.Address{
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}
	_, err := deployer.DeployRoot(context.Background(), 98_765, addrs)
	if err != nil {
		t.Fatalf("DeployRoot: %v", err)
	}

	want := NewDeploymentCalldata(NewRootCode(98_765, addrs).Bytes()).Bytes()
	if !bytes.Equal(provider.sent[0].Data(), want) {
		t.Errorf("root calldata does not wrap the root code object")
	}
}

func TestDeployCodeDirect(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	code := SplitIfLarge([]byte("small contract"), DefaultMaxCodeSize)
	addr, err := deployer.DeployCode(context.Background(), code, 100)
	if err != nil {
		t.Fatalf("DeployCode: %v", err)
	}
	if addr == (common.Address{}) {
		t.Fatalf("zero deployment address")
	}
	if len(provider.sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(provider.sent))
	}
}

func TestDeployCodeFragmented(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	code := SplitIfLarge(make([]byte, 2*DefaultMaxCodeSize), DefaultMaxCodeSize)
	fragments := code.(*CodeFragments)

	addr, err := deployer.DeployCode(context.Background(), code, 180_000)
	if err != nil {
		t.Fatalf("DeployCode: %v", err)
	}
	if addr == (common.Address{}) {
		t.Fatalf("zero deployment address")
	}
	// One creation per fragment plus the root object.
	if len(provider.sent) != fragments.FragmentCount()+1 {
		t.Fatalf("sent %d transactions, want %d", len(provider.sent), fragments.FragmentCount()+1)
	}

	rootData := provider.sent[len(provider.sent)-1].Data()
	rootCode := DeploymentCalldataFromBytes(rootData).Code()
	if !bytes.Equal(rootCode[:len(TagRoot)], TagRoot) {
		t.Errorf("final transaction does not deploy a root object")
	}
}

func TestSubmitReverted(t *testing.T) {
	provider := newFakeProvider()
	provider.revertAll = true
	deployer := NewDeployer(provider, testSigner(provider))

	_, err := deployer.DeployCode(context.Background(), NewContractCode([]byte{0x01}), 1)
	var reverted *TxRevertedError
	if !errors.As(err, &reverted) {
		t.Fatalf("expected TxRevertedError, got %v", err)
	}
	if deployer.State() != StateReverted {
		t.Errorf("state = %s, want reverted", deployer.State())
	}

	// A reverted deployer is reusable for the next attempt.
	provider.revertAll = false
	if _, err := deployer.DeployCode(context.Background(), NewContractCode([]byte{0x01}), 1); err != nil {
		t.Fatalf("redeploy after revert: %v", err)
	}
}

func TestSubmitGasEstimationFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.estimateGas = func(msg ethereum.CallMsg) (uint64, error) {
		return 0, errors.New("always fails")
	}
	deployer := NewDeployer(provider, testSigner(provider))

	_, err := deployer.DeployCode(context.Background(), NewContractCode([]byte{0x01}), 1)
	if !errors.Is(err, ErrGasEstimation) {
		t.Fatalf("expected ErrGasEstimation, got %v", err)
	}
	if deployer.State() != StateIdle {
		t.Errorf("state after abandoned attempt = %s, want idle", deployer.State())
	}
}

func TestSubmitUsesConfiguredFeeCap(t *testing.T) {
	provider := newFakeProvider()
	cap := big.NewInt(7_000_000_000)
	deployer := NewDeployer(provider, testSigner(provider), WithMaxFeePerGas(cap))

	if _, err := deployer.DeployCode(context.Background(), NewContractCode([]byte{0x01}), 1); err != nil {
		t.Fatalf("DeployCode: %v", err)
	}
	if provider.sent[0].GasFeeCap().Cmp(cap) != 0 {
		t.Errorf("fee cap = %v, want %v", provider.sent[0].GasFeeCap(), cap)
	}
}

func TestStateMachineGuards(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	if err := deployer.advance(StateSubmitting); !errors.Is(err, ErrInvalidState) {
		t.Errorf("idle -> submitting should be rejected, got %v", err)
	}
	if err := deployer.advance(StateEstimatingGas); err != nil {
		t.Fatalf("idle -> estimating_gas should be allowed, got %v", err)
	}
	if err := deployer.advance(StateConfirmed); !errors.Is(err, ErrInvalidState) {
		t.Errorf("estimating_gas -> confirmed should be rejected, got %v", err)
	}
}

func TestDeployWithConstructor(t *testing.T) {
	provider := newFakeProvider()
	deployed := common.HexToAddress("0x5555555555555555555555555555555555555555")

	eventData, err := deployerABI.Events["ContractDeployed"].Inputs.Pack(deployed)
	if err != nil {
		t.Fatalf("packing event data: %v", err)
	}
	provider.receiptLogs = []*types.Log{{
		Topics: []common.Hash{deployerABI.Events["ContractDeployed"].ID},
		Data:   eventData,
	}}

	deployer := NewDeployer(provider, testSigner(provider))
	constructor, err := NewConstructor([]string{"uint256"}, true)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}

	code := NewContractCode([]byte("contract"))
	addr, err := deployer.DeployWithConstructor(context.Background(), code, constructor, []string{"1"}, big.NewInt(5), big.NewInt(100))
	if err != nil {
		t.Fatalf("DeployWithConstructor: %v", err)
	}
	if addr != deployed {
		t.Errorf("address = %s, want %s", addr, deployed)
	}

	tx := provider.sent[0]
	if tx.To() == nil || *tx.To() != DefaultFactoryAddress {
		t.Errorf("transaction not sent to the factory")
	}
	if tx.Value().Cmp(big.NewInt(100)) != 0 {
		t.Errorf("tx value = %v, want 100", tx.Value())
	}
}

func TestDeployWithConstructorNoEvent(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	constructor, err := NewConstructor(nil, true)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}
	_, err = deployer.DeployWithConstructor(context.Background(), NewContractCode([]byte{0x01}), constructor, nil, nil, nil)
	if !errors.Is(err, ErrNoContractAddress) {
		t.Fatalf("expected ErrNoContractAddress, got %v", err)
	}
}

func TestDeployWithConstructorNonPayableValue(t *testing.T) {
	provider := newFakeProvider()
	deployer := NewDeployer(provider, testSigner(provider))

	constructor, err := NewConstructor(nil, false)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}
	_, err = deployer.DeployWithConstructor(context.Background(), NewContractCode([]byte{0x01}), constructor, nil, big.NewInt(1), big.NewInt(1))
	var coercionErr *ArgCoercionError
	if !errors.As(err, &coercionErr) {
		t.Fatalf("expected ArgCoercionError for non-payable value, got %v", err)
	}
	if len(provider.sent) != 0 {
		t.Errorf("transaction was sent despite invalid constructor value")
	}
}

func TestEstimateFragmentsGas(t *testing.T) {
	provider := newFakeProvider()
	provider.estimateGas = func(msg ethereum.CallMsg) (uint64, error) {
		return 21_000, nil
	}
	deployer := NewDeployer(provider, testSigner(provider))

	fragments := NewCodeFragments(make([]byte, 2*DefaultMaxCodeSize), DefaultMaxCodeSize)
	gas, err := deployer.EstimateFragmentsGas(context.Background(), fragments)
	if err != nil {
		t.Fatalf("EstimateFragmentsGas: %v", err)
	}
	if want := uint64(21_000) * uint64(fragments.FragmentCount()); gas != want {
		t.Errorf("gas = %d, want %d", gas, want)
	}
}
