package document

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Checksum hashes the canonical serialization of the document. It detects
// equal snapshots; it is not an integrity guarantee.
func Checksum(doc *Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	return ChecksumBytes(data), nil
}

// ChecksumBytes hashes an already serialized snapshot.
func ChecksumBytes(data []byte) string {
	sum := xxh3.Hash128(data)
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}
