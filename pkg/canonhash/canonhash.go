package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SumObject digests the canonical JSON encoding of v. json.Marshal writes map
// keys in sorted order, so logically equal values share a digest.
func SumObject(v any) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:]), b, nil
}

// SumBytes digests content that is already in its canonical form, such as an
// uploaded rights document.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
