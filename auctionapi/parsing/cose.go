package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ExtractCOSEPayload extracts the payload from a COSE_Sign1 4-element array
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
// Returns the payload bytes (element 2)
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	parts, err := SplitCOSESign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return parts.Payload, nil
}

// COSESign1 holds the byte-string members of an untagged COSE_Sign1 array.
type COSESign1 struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// SplitCOSESign1 decodes an untagged COSE_Sign1 array, as produced by the Nitro NSM.
func SplitCOSESign1(coseBytes []byte) (*COSESign1, error) {
	var coseArray []any
	if err := cbor.Unmarshal(coseBytes, &coseArray); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers in COSE structure")
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature in COSE structure")
	}

	return &COSESign1{Protected: protected, Payload: payload, Signature: signature}, nil
}
