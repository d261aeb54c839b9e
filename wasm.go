package stylus

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ProjectHashSectionName is the custom section added to every deployed module,
// carrying a 32-byte hash of the project's source files for reproducible
// build verification.
const ProjectHashSectionName = "project_hash"

// wasmMagic is the leading bytes of every WASM binary: "\0asm" plus version 1.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Section ids defined by the WASM binary format. Id 0 is the custom section;
// anything above maxKnownSectionID is unknown to the format version the chain
// backend supports and must not reach the chain.
const (
	customSectionID   = 0
	maxKnownSectionID = 12 // data count section
)

// wasmSection is one section of a parsed module: a one-byte id followed by a
// length-prefixed payload. Payload bytes are aliased, not copied.
type wasmSection struct {
	id      byte
	payload []byte
}

// NormalizeWasm prepares a raw compiled module for on-chain deployment:
//
//  1. Round-trips the binary through a structural decode and re-encode, which
//     rejects malformed modules and canonicalizes section framing the target
//     host cannot parse.
//  2. Strips every custom and unknown section so build metadata does not leak
//     into the deployed artifact.
//  3. Appends one custom section named ProjectHashSectionName carrying the
//     32-byte project identity. If such a section already exists the module
//     is left as-is.
//  4. Re-validates the emitted bytes with a final parse.
//
// The result is still a validly-parseable module.
func NormalizeWasm(wasm []byte, projectHash [32]byte) ([]byte, error) {
	sections, err := parseWasmSections(wasm)
	if err != nil {
		return nil, &WasmError{Stage: StageRead, Err: err}
	}

	stripped, err := encodeWasmSections(sections, func(s wasmSection) bool {
		return s.id != customSectionID && s.id <= maxKnownSectionID
	})
	if err != nil {
		return nil, &WasmError{Stage: StageStrip, Err: err}
	}

	tagged, err := AddCustomSection(stripped, ProjectHashSectionName, projectHash[:])
	if err != nil {
		return nil, &WasmError{Stage: StageStrip, Err: err}
	}

	if _, err := parseWasmSections(tagged); err != nil {
		return nil, &WasmError{Stage: StageReencode, Err: err}
	}
	return tagged, nil
}

// AddCustomSection appends a custom section to the module, unless a custom
// section with the same name already exists, in which case the module is
// returned unchanged.
func AddCustomSection(wasm []byte, name string, data []byte) ([]byte, error) {
	exists, err := HasCustomSection(wasm, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return wasm, nil
	}

	// Custom section payload: name length, name bytes, raw data.
	payload := appendUvarint(nil, uint64(len(name)))
	payload = append(payload, name...)
	payload = append(payload, data...)

	out := make([]byte, 0, len(wasm)+len(payload)+6)
	out = append(out, wasm...)
	out = append(out, customSectionID)
	out = appendUvarint(out, uint64(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// HasCustomSection reports whether the module contains a custom section with
// the given name.
func HasCustomSection(wasm []byte, name string) (bool, error) {
	sections, err := parseWasmSections(wasm)
	if err != nil {
		return false, err
	}
	for _, s := range sections {
		if s.id != customSectionID {
			continue
		}
		sectionName, _, err := readName(s.payload)
		if err != nil {
			return false, err
		}
		if sectionName == name {
			return true, nil
		}
	}
	return false, nil
}

// parseWasmSections validates the module header and walks the section list.
func parseWasmSections(wasm []byte) ([]wasmSection, error) {
	if !bytes.HasPrefix(wasm, wasmMagic) {
		return nil, fmt.Errorf("not a wasm v1 binary")
	}
	var sections []wasmSection
	rest := wasm[len(wasmMagic):]
	for len(rest) > 0 {
		id := rest[0]
		rest = rest[1:]
		size, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, fmt.Errorf("section %d: malformed size", id)
		}
		rest = rest[n:]
		if size > uint64(len(rest)) {
			return nil, fmt.Errorf("section %d: size %d exceeds remaining %d bytes", id, size, len(rest))
		}
		sections = append(sections, wasmSection{id: id, payload: rest[:size]})
		rest = rest[size:]
	}
	return sections, nil
}

// encodeWasmSections re-emits the module, keeping only sections the filter
// accepts. Kept section payloads are carried over byte-for-byte.
func encodeWasmSections(sections []wasmSection, keep func(wasmSection) bool) ([]byte, error) {
	out := make([]byte, 0, wasmSectionsSize(sections))
	out = append(out, wasmMagic...)
	for _, s := range sections {
		if !keep(s) {
			continue
		}
		out = append(out, s.id)
		out = appendUvarint(out, uint64(len(s.payload)))
		out = append(out, s.payload...)
	}
	return out, nil
}

func wasmSectionsSize(sections []wasmSection) int {
	size := len(wasmMagic)
	for _, s := range sections {
		size += 1 + binary.MaxVarintLen32 + len(s.payload)
	}
	return size
}

// readName decodes the length-prefixed UTF-8 name at the start of a custom
// section payload, returning the name and the number of bytes consumed.
func readName(payload []byte) (string, int, error) {
	size, n := binary.Uvarint(payload)
	if n <= 0 {
		return "", 0, fmt.Errorf("malformed custom section name length")
	}
	if size > uint64(len(payload)-n) {
		return "", 0, fmt.Errorf("custom section name length %d exceeds payload", size)
	}
	return string(payload[n : n+int(size)]), n + int(size), nil
}

// appendUvarint appends v in unsigned LEB128, the integer encoding used
// throughout the WASM binary format.
func appendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}
