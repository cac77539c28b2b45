package rules

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the canonical JSON form of a tree. Equal trees have
// equal fingerprints; editor IDs are part of the hash.
func Fingerprint(root *Group) (uint64, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// ETag formats a fingerprint as a weak HTTP entity tag.
func ETag(root *Group) (string, error) {
	sum, err := Fingerprint(root)
	if err != nil {
		return "", err
	}
	return `W/"` + strconv.FormatUint(sum, 16) + `"`, nil
}
