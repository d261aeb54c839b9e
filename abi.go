package stylus

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ArbWasmAddress is the registry precompile managing Stylus contract
// activation on Arbitrum chains.
var ArbWasmAddress = common.HexToAddress("0x0000000000000000000000000000000000000071")

// DefaultFactoryAddress is the well-known StylusDeployer factory used for
// constructor-mediated deployments.
var DefaultFactoryAddress = common.HexToAddress("0xcEcba2F1DC234f70Dd89F2041029807F8D03A990")

// arbWasmABIJSON covers the precompile entries this package consumes, plus
// the revert reasons the oracle classifies as "not activated".
const arbWasmABIJSON = `[
	{"type": "function", "name": "activateProgram", "stateMutability": "payable",
	 "inputs": [{"name": "program", "type": "address"}],
	 "outputs": [{"name": "dataFee", "type": "uint256"}]},
	{"type": "function", "name": "codehashVersion", "stateMutability": "view",
	 "inputs": [{"name": "codehash", "type": "bytes32"}],
	 "outputs": [{"name": "version", "type": "uint16"}]},
	{"type": "error", "name": "ProgramNotActivated", "inputs": []},
	{"type": "error", "name": "ProgramNeedsUpgrade",
	 "inputs": [{"name": "version", "type": "uint16"}, {"name": "stylusVersion", "type": "uint16"}]},
	{"type": "error", "name": "ProgramExpired",
	 "inputs": [{"name": "ageInSeconds", "type": "uint64"}]}
]`

// deployerABIJSON is the StylusDeployer factory entry and its deployment event.
const deployerABIJSON = `[
	{"type": "function", "name": "deploy", "stateMutability": "payable",
	 "inputs": [
		{"name": "bytecode", "type": "bytes"},
		{"name": "initData", "type": "bytes"},
		{"name": "initValue", "type": "uint256"},
		{"name": "salt", "type": "bytes32"}
	 ],
	 "outputs": [{"name": "", "type": "address"}]},
	{"type": "event", "name": "ContractDeployed", "anonymous": false,
	 "inputs": [{"name": "deployedContract", "type": "address", "indexed": false}]}
]`

var (
	arbWasmABI  = MustParseABI(arbWasmABIJSON)
	deployerABI = MustParseABI(deployerABIJSON)

	// constructorSelector is the 4-byte marker the factory expects at the
	// start of init data, derived from the stylus_constructor() entrypoint.
	constructorSelector = crypto.Keccak256([]byte("stylus_constructor()"))[:4]
)

// ParseABI parses a JSON ABI string into an abi.ABI.
func ParseABI(abiJSON string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// MustParseABI is like ParseABI but panics on error.
func MustParseABI(abiJSON string) abi.ABI {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return parsed
}
