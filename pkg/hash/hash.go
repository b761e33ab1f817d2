package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Checksum описывает отпечаток загруженного документа
type Checksum struct {
	Algorithm Algorithm `json:"algorithm"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
}

type Hasher interface {
	Calculate(data []byte) (*Checksum, error)
	CalculateReader(reader io.Reader) (*Checksum, error)
	Verify(data []byte, expected string) (bool, error)
}

type DocumentHasher struct {
	algorithm Algorithm
}

func NewDocumentHasher(algorithm Algorithm) *DocumentHasher {
	if algorithm == "" {
		algorithm = SHA256
	}
	return &DocumentHasher{
		algorithm: algorithm,
	}
}

func (h *DocumentHasher) Calculate(data []byte) (*Checksum, error) {
	hasher, err := h.getHasher()
	if err != nil {
		return nil, err
	}

	hasher.Write(data)
	return &Checksum{
		Algorithm: h.algorithm,
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Size:      int64(len(data)),
	}, nil
}

func (h *DocumentHasher) CalculateReader(reader io.Reader) (*Checksum, error) {
	hasher, err := h.getHasher()
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(hasher, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return &Checksum{
		Algorithm: h.algorithm,
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Size:      n,
	}, nil
}

func (h *DocumentHasher) Verify(data []byte, expected string) (bool, error) {
	sum, err := h.Calculate(data)
	if err != nil {
		return false, err
	}

	return sum.Hash == expected, nil
}

func (h *DocumentHasher) getHasher() (hash.Hash, error) {
	switch h.algorithm {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", h.algorithm)
	}
}
