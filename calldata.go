package stylus

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

const (
	initcodeLength = 42
	metadataLength = 1

	// PreludeLength is the total length of the deployment prelude
	// (initcode plus one version byte), independent of payload size.
	PreludeLength = initcodeLength + metadataLength
)

// BuildPrelude prepares the EVM bytecode prelude for contract creation. The
// prelude is transient init logic: it copies the codeLen bytes that follow it
// into storage as the new contract's code and is never itself stored.
//
// Layout: PUSH32 codeLen, DUP1, PUSH1 43, PUSH1 0, CODECOPY, PUSH1 0,
// RETURN, then a single version byte (0).
func BuildPrelude(codeLen int) []byte {
	prelude := make([]byte, 0, PreludeLength)
	prelude = append(prelude, 0x7f) // PUSH32
	var lenWord [32]byte
	big.NewInt(int64(codeLen)).FillBytes(lenWord[:])
	prelude = append(prelude, lenWord[:]...)
	prelude = append(prelude, 0x80)                // DUP1
	prelude = append(prelude, 0x60, PreludeLength) // PUSH1 prelude length
	prelude = append(prelude, 0x60, 0x00)          // PUSH1 0
	prelude = append(prelude, 0x39)                // CODECOPY
	prelude = append(prelude, 0x60, 0x00)          // PUSH1 0
	prelude = append(prelude, 0xf3)                // RETURN
	prelude = append(prelude, 0x00)                // version
	return prelude
}

// DeploymentCalldata is the full input of a direct-creation deployment
// transaction: a fixed-size prelude followed by the tagged code bytes.
type DeploymentCalldata struct {
	data []byte
}

// NewDeploymentCalldata wraps tagged code in the creation prelude.
func NewDeploymentCalldata(code []byte) DeploymentCalldata {
	data := make([]byte, 0, PreludeLength+len(code))
	data = append(data, BuildPrelude(len(code))...)
	data = append(data, code...)
	return DeploymentCalldata{data: data}
}

// DeploymentCalldataFromBytes wraps raw transaction input for inspection.
func DeploymentCalldataFromBytes(data []byte) DeploymentCalldata {
	return DeploymentCalldata{data: append([]byte(nil), data...)}
}

// Bytes returns the complete calldata.
func (d DeploymentCalldata) Bytes() []byte {
	return d.data
}

// Prelude returns the leading prelude bytes. Inputs shorter than a full
// prelude return what is present.
func (d DeploymentCalldata) Prelude() []byte {
	if len(d.data) < PreludeLength {
		return d.data
	}
	return d.data[:PreludeLength]
}

// Code returns the tagged code bytes following the prelude.
func (d DeploymentCalldata) Code() []byte {
	if len(d.data) < PreludeLength {
		return nil
	}
	return d.data[PreludeLength:]
}

// Constructor describes a Stylus constructor declared by the local project.
type Constructor struct {
	Inputs  abi.Arguments
	Payable bool
}

// NewConstructor builds a Constructor from ABI type strings, e.g.
// []string{"uint256", "address"}.
func NewConstructor(inputTypes []string, payable bool) (Constructor, error) {
	inputs := make(abi.Arguments, 0, len(inputTypes))
	for i, t := range inputTypes {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return Constructor{}, &ArgCoercionError{Index: i, Type: t, Err: err}
		}
		inputs = append(inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return Constructor{Inputs: inputs, Payable: payable}, nil
}

// BuildConstructorCalldata ABI-encodes a call to the factory's
// deploy(bytes,bytes,uint256,bytes32) entry. The first argument is the full
// DeploymentCalldata for the target code; the second is the constructor
// selector followed by the coerced, ABI-encoded constructor arguments.
func BuildConstructorCalldata(code []byte, constructor Constructor, args []string, initValue *big.Int, salt common.Hash) ([]byte, error) {
	if len(args) != len(constructor.Inputs) {
		return nil, &ArgCoercionError{
			Err: fmt.Errorf("constructor takes %d arguments, got %d", len(constructor.Inputs), len(args)),
		}
	}

	coerced := make([]any, len(args))
	for i, arg := range args {
		v, err := coerceArg(constructor.Inputs[i].Type, arg)
		if err != nil {
			return nil, &ArgCoercionError{Index: i, Type: constructor.Inputs[i].Type.String(), Err: err}
		}
		coerced[i] = v
	}
	encodedArgs, err := constructor.Inputs.Pack(coerced...)
	if err != nil {
		return nil, &ArgCoercionError{Err: err}
	}

	initData := make([]byte, 0, len(constructorSelector)+len(encodedArgs))
	initData = append(initData, constructorSelector...)
	initData = append(initData, encodedArgs...)

	bytecode := NewDeploymentCalldata(code)
	if initValue == nil {
		initValue = new(big.Int)
	}
	calldata, err := deployerABI.Pack("deploy", bytecode.Bytes(), initData, initValue, [32]byte(salt))
	if err != nil {
		return nil, fmt.Errorf("stylus: packing deploy calldata: %w", err)
	}
	return calldata, nil
}

// coerceArg converts a textual argument to the Go value the ABI encoder
// expects for the given type.
func coerceArg(t abi.Type, arg string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(arg) {
			return nil, fmt.Errorf("invalid address %q", arg)
		}
		return common.HexToAddress(arg), nil

	case abi.UintTy, abi.IntTy:
		n, ok := math.ParseBig256(arg)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", arg)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q for %s", arg, t)
		}
		if t.Size > 64 {
			return n, nil
		}
		v := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			if !n.IsUint64() || n.BitLen() > t.Size {
				return nil, fmt.Errorf("integer %q overflows %s", arg, t)
			}
			v.SetUint(n.Uint64())
		} else {
			limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
			if n.Cmp(new(big.Int).Neg(limit)) < 0 || n.Cmp(limit) >= 0 {
				return nil, fmt.Errorf("integer %q overflows %s", arg, t)
			}
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", arg)
		}
		return b, nil

	case abi.StringTy:
		return arg, nil

	case abi.BytesTy:
		b, err := hexutil.Decode(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", arg, err)
		}
		return b, nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", arg, err)
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported constructor argument type %s", t)
	}
}
