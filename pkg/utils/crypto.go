package utils

import (
	"crypto/md5" //nolint:gosec // MD5 supported for legacy compatibility only
	"crypto/sha1" //nolint:gosec // SHA1 supported for legacy compatibility only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashAlgorithm represents different hashing algorithms
type HashAlgorithm string

const (
	AlgorithmMD5    HashAlgorithm = "md5"
	AlgorithmSHA1   HashAlgorithm = "sha1"
	AlgorithmSHA256 HashAlgorithm = "sha256"
	AlgorithmSHA512 HashAlgorithm = "sha512"
)

// Hash computes a hash using the specified algorithm
func Hash(data []byte, algorithm HashAlgorithm) (string, error) {
	var hasher hash.Hash

	switch algorithm {
	case AlgorithmMD5:
		hasher = md5.New() //nolint:gosec
	case AlgorithmSHA1:
		hasher = sha1.New() //nolint:gosec
	case AlgorithmSHA256:
		hasher = sha256.New()
	case AlgorithmSHA512:
		hasher = sha512.New()
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}

	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashString computes a hash of a string using the specified algorithm
func HashString(data string, algorithm HashAlgorithm) (string, error) {
	return Hash([]byte(data), algorithm)
}
