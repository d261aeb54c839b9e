package stylus

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBuildPreludeLayout(t *testing.T) {
	prelude := BuildPrelude(1000)

	if len(prelude) != PreludeLength {
		t.Fatalf("prelude length = %d, want %d", len(prelude), PreludeLength)
	}
	if prelude[0] != 0x7f {
		t.Errorf("prelude[0] = %#x, want PUSH32 (0x7f)", prelude[0])
	}

	codeLen := new(big.Int).SetBytes(prelude[1:33])
	if codeLen.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("encoded code length = %v, want 1000", codeLen)
	}

	tail := []byte{0x80, 0x60, 0x2b, 0x60, 0x00, 0x39, 0x60, 0x00, 0xf3, 0x00}
	if !bytes.Equal(prelude[33:], tail) {
		t.Errorf("prelude tail = %x, want %x", prelude[33:], tail)
	}
}

func TestBuildPreludePurity(t *testing.T) {
	// The prelude depends only on the code length.
	if !bytes.Equal(BuildPrelude(4096), BuildPrelude(4096)) {
		t.Errorf("identical lengths produced different preludes")
	}
	if bytes.Equal(BuildPrelude(4096), BuildPrelude(4097)) {
		t.Errorf("different lengths produced identical preludes")
	}
}

func TestDeploymentCalldataAccessors(t *testing.T) {
	code := []byte("tagged contract code")
	calldata := NewDeploymentCalldata(code)

	if len(calldata.Bytes()) != PreludeLength+len(code) {
		t.Fatalf("calldata length = %d, want %d", len(calldata.Bytes()), PreludeLength+len(code))
	}
	if !bytes.Equal(calldata.Prelude(), BuildPrelude(len(code))) {
		t.Errorf("Prelude() does not match BuildPrelude")
	}
	if !bytes.Equal(calldata.Code(), code) {
		t.Errorf("Code() does not round-trip the input")
	}

	short := DeploymentCalldataFromBytes([]byte{0x01, 0x02})
	if !bytes.Equal(short.Prelude(), []byte{0x01, 0x02}) {
		t.Errorf("short input Prelude() should return what is present")
	}
	if short.Code() != nil {
		t.Errorf("short input Code() should be nil")
	}
}

func TestBuildConstructorCalldata(t *testing.T) {
	constructor, err := NewConstructor([]string{"uint256", "address"}, true)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}

	code := []byte("contract code")
	owner := "0x00000000000000000000000000000000000000aa"
	salt := common.HexToHash("0x1234")
	value := big.NewInt(42)

	calldata, err := BuildConstructorCalldata(code, constructor, []string{"7", owner}, value, salt)
	if err != nil {
		t.Fatalf("BuildConstructorCalldata: %v", err)
	}

	deployMethod := deployerABI.Methods["deploy"]
	if !bytes.Equal(calldata[:4], deployMethod.ID) {
		t.Fatalf("calldata selector = %x, want deploy selector %x", calldata[:4], deployMethod.ID)
	}

	values, err := deployMethod.Inputs.Unpack(calldata[4:])
	if err != nil {
		t.Fatalf("unpacking deploy call: %v", err)
	}

	bytecode := values[0].([]byte)
	if !bytes.Equal(bytecode, NewDeploymentCalldata(code).Bytes()) {
		t.Errorf("bytecode argument is not the full deployment calldata")
	}

	initData := values[1].([]byte)
	if !bytes.HasPrefix(initData, constructorSelector) {
		t.Errorf("init data does not start with the constructor selector")
	}
	args, err := constructor.Inputs.Unpack(initData[len(constructorSelector):])
	if err != nil {
		t.Fatalf("unpacking constructor args: %v", err)
	}
	if args[0].(*big.Int).Cmp(big.NewInt(7)) != 0 {
		t.Errorf("first constructor arg = %v, want 7", args[0])
	}
	if args[1].(common.Address) != common.HexToAddress(owner) {
		t.Errorf("second constructor arg = %v, want %s", args[1], owner)
	}

	if values[2].(*big.Int).Cmp(value) != 0 {
		t.Errorf("init value = %v, want %v", values[2], value)
	}
	if common.Hash(values[3].([32]byte)) != salt {
		t.Errorf("salt = %x, want %s", values[3], salt)
	}
}

func TestBuildConstructorCalldataErrors(t *testing.T) {
	constructor, err := NewConstructor([]string{"uint256", "address"}, false)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"too few args", []string{"7"}},
		{"too many args", []string{"7", "0x00000000000000000000000000000000000000aa", "extra"}},
		{"bad integer", []string{"seven", "0x00000000000000000000000000000000000000aa"}},
		{"bad address", []string{"7", "not-an-address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildConstructorCalldata([]byte{0x01}, constructor, tt.args, nil, common.Hash{})
			var coercionErr *ArgCoercionError
			if !errors.As(err, &coercionErr) {
				t.Fatalf("expected ArgCoercionError, got %v", err)
			}
		})
	}
}

func TestCoerceArgTypes(t *testing.T) {
	tests := []struct {
		abiType string
		arg     string
		wantErr bool
	}{
		{"uint8", "255", false},
		{"uint8", "-1", true},
		{"int64", "-12", false},
		{"bool", "true", false},
		{"bool", "maybe", true},
		{"string", "hello", false},
		{"bytes", "0xdeadbeef", false},
		{"bytes", "deadbeef", true},
		{"bytes32", "0x" + common.Hash{}.Hex()[2:], false},
		{"bytes32", "0xdead", true},
	}

	for _, tt := range tests {
		t.Run(tt.abiType+"/"+tt.arg, func(t *testing.T) {
			constructor, err := NewConstructor([]string{tt.abiType}, false)
			if err != nil {
				t.Fatalf("NewConstructor: %v", err)
			}
			_, err = BuildConstructorCalldata([]byte{0x01}, constructor, []string{tt.arg}, nil, common.Hash{})
			if (err != nil) != tt.wantErr {
				t.Errorf("coercing %q as %s: err = %v, wantErr = %v", tt.arg, tt.abiType, err, tt.wantErr)
			}
		})
	}
}
