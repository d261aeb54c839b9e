package stylus

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Prefix tags identifying code objects to the chain backend. These are
// protocol constants; the leading bytes of every on-chain Stylus code object.
var (
	// TagContract marks a complete compressed contract (EOF, no dictionary).
	TagContract = []byte{0xEF, 0xF0, 0x00, 0x00}

	// TagFragment marks one fragment of an oversized contract.
	TagFragment = []byte{0xEF, 0xF0, 0x01}

	// TagRoot marks a root object referencing deployed fragments.
	TagRoot = []byte{0xEF, 0xF0, 0x02, 0x00}
)

// DefaultMaxCodeSize is the ceiling on deployed contract bytecode length,
// mirroring EIP-170.
const DefaultMaxCodeSize = 24576

// Code is tagged contract code ready to be stored on-chain: either a single
// ContractCode or, for contracts exceeding the max code size, CodeFragments.
//
// This is a sealed interface - only types within this package implement it.
type Code interface {
	// isCode is unexported to seal the interface.
	isCode()

	// Bytes returns the full tagged code bytes. For CodeFragments this is
	// the concatenation of every fragment's tagged bytes.
	Bytes() []byte

	// Codehash returns the keccak256 digest identifying this code object.
	//
	// Note the asymmetry inherited from the on-chain registry: for
	// ContractCode the digest covers tag plus payload; for CodeFragments it
	// covers the concatenation of each fragment's full tagged bytes. The two
	// are never equal for logically equivalent code.
	Codehash() common.Hash

	// Codesize returns the total length of the tagged code in bytes.
	Codesize() int
}

// SplitIfLarge wraps a compressed payload as a single ContractCode when it
// fits within maxCodeSize (tag included), and otherwise chunks it into an
// ordered CodeFragments set.
func SplitIfLarge(compressed []byte, maxCodeSize int) Code {
	if len(TagContract)+len(compressed) <= maxCodeSize {
		return NewContractCode(compressed)
	}
	return NewCodeFragments(compressed, maxCodeSize)
}

// PackageWasm runs the full packaging pipeline: normalize, compress, and
// split. It returns the code object and the uncompressed (normalized) module
// size needed to build the root object for fragmented deployments.
func PackageWasm(raw []byte, projectHash [32]byte, maxCodeSize int) (Code, uint32, error) {
	normalized, err := NormalizeWasm(raw, projectHash)
	if err != nil {
		return nil, 0, err
	}
	compressed, err := CompressWasm(normalized)
	if err != nil {
		return nil, 0, err
	}
	return SplitIfLarge(compressed, maxCodeSize), uint32(len(normalized)), nil
}

// ContractCode is code for a contract which fits within the max code size,
// or a root object referencing deployed fragments.
type ContractCode struct {
	code []byte
}

// NewContractCode tags a compressed payload as a complete contract.
func NewContractCode(compressed []byte) *ContractCode {
	code := make([]byte, 0, len(TagContract)+len(compressed))
	code = append(code, TagContract...)
	code = append(code, compressed...)
	return &ContractCode{code: code}
}

// NewRootCode builds the root object for a fragmented contract: the root tag,
// the uncompressed module size as 4 big-endian bytes, then the fragment
// addresses in deployment order.
func NewRootCode(uncompressedSize uint32, addresses []common.Address) *ContractCode {
	code := make([]byte, 0, len(TagRoot)+4+common.AddressLength*len(addresses))
	code = append(code, TagRoot...)
	code = binary.BigEndian.AppendUint32(code, uncompressedSize)
	for _, addr := range addresses {
		code = append(code, addr.Bytes()...)
	}
	return &ContractCode{code: code}
}

// ContractCodeFromBytes wraps already-tagged code bytes, as read back from
// the chain.
func ContractCodeFromBytes(code []byte) *ContractCode {
	return &ContractCode{code: append([]byte(nil), code...)}
}

func (c *ContractCode) isCode() {}

// Bytes returns the tagged code bytes.
func (c *ContractCode) Bytes() []byte {
	return c.code
}

// Codehash is the keccak256 hash of the tagged code bytes.
func (c *ContractCode) Codehash() common.Hash {
	return crypto.Keccak256Hash(c.code)
}

// Codesize returns the length of the tagged code.
func (c *ContractCode) Codesize() int {
	return len(c.code)
}

// CodeFragment is one tagged slice of an oversized contract.
type CodeFragment struct {
	code []byte
}

func newCodeFragment(chunk []byte) CodeFragment {
	code := make([]byte, 0, len(TagFragment)+len(chunk))
	code = append(code, TagFragment...)
	code = append(code, chunk...)
	return CodeFragment{code: code}
}

// Bytes returns the tagged fragment bytes.
func (f CodeFragment) Bytes() []byte {
	return f.code
}

// Payload returns the fragment's slice of the compressed payload, tag
// stripped.
func (f CodeFragment) Payload() []byte {
	return f.code[len(TagFragment):]
}

// CodeFragments is a complete contract's worth of ordered code fragments.
// Concatenating the tag-stripped payloads reconstructs the compressed
// payload exactly; every fragment fits within the max code size.
type CodeFragments struct {
	fragments []CodeFragment
}

// NewCodeFragments chunks a compressed payload, leaving room in each chunk
// for the fragment tag.
func NewCodeFragments(compressed []byte, maxCodeSize int) *CodeFragments {
	chunkSize := maxCodeSize - len(TagFragment)
	fragments := make([]CodeFragment, 0, (len(compressed)+chunkSize-1)/chunkSize)
	for len(compressed) > 0 {
		n := min(chunkSize, len(compressed))
		fragments = append(fragments, newCodeFragment(compressed[:n]))
		compressed = compressed[n:]
	}
	return &CodeFragments{fragments: fragments}
}

func (cf *CodeFragments) isCode() {}

// Fragments returns the fragments in deployment order.
func (cf *CodeFragments) Fragments() []CodeFragment {
	return cf.fragments
}

// FragmentCount returns the number of fragments.
func (cf *CodeFragments) FragmentCount() int {
	return len(cf.fragments)
}

// Bytes returns the concatenation of every fragment's tagged bytes.
func (cf *CodeFragments) Bytes() []byte {
	out := make([]byte, 0, cf.Codesize())
	for _, f := range cf.fragments {
		out = append(out, f.code...)
	}
	return out
}

// Codehash is the keccak256 hash of all tagged fragments concatenated.
func (cf *CodeFragments) Codehash() common.Hash {
	return crypto.Keccak256Hash(cf.Bytes())
}

// Codesize returns the total length of all tagged fragments.
func (cf *CodeFragments) Codesize() int {
	size := 0
	for _, f := range cf.fragments {
		size += len(f.code)
	}
	return size
}
