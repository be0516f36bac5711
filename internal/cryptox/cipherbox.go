// Package cryptox implements the server-side payload cipher.
//
// All stored objects are encrypted with one static AES-256 key held by the
// server. Blobs are laid out as IV || CBC ciphertext with PKCS#7 padding and
// carry no authentication tag, so tampering is not detected.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialization vector length in bytes.
	IVSize = aes.BlockSize
)

// DeriveKey turns a shared secret into a 32-byte key: the first 32
// characters of base64(SHA-256(secret)). Only 192 bits of the digest survive
// the encoding, which is weaker than a raw random key. Existing blobs depend
// on it, so it stays.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	return []byte(encoded[:KeySize])
}

// CipherBox encrypts and decrypts opaque payloads under a fixed key. It is
// immutable after construction and safe for concurrent use.
type CipherBox struct {
	block cipher.Block
}

// NewCipherBox builds a CipherBox from a 32-byte key.
func NewCipherBox(key []byte) (*CipherBox, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CipherBox{block: block}, nil
}

// NewCipherBoxFromSecret is NewCipherBox(DeriveKey(secret)).
func NewCipherBoxFromSecret(secret string) (*CipherBox, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty encryption secret", common.ErrorValidation)
	}
	return NewCipherBox(DeriveKey(secret))
}

// Encrypt returns IV || ciphertext with a fresh random IV.
func (b *CipherBox) Encrypt(plaintext []byte) ([]byte, error) {
	padded := pad(plaintext, aes.BlockSize)

	blob := make([]byte, IVSize+len(padded))
	iv := blob[:IVSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	cipher.NewCBCEncrypter(b.block, iv).CryptBlocks(blob[IVSize:], padded)
	return blob, nil
}

// Decrypt reverses Encrypt. Malformed blobs yield common.ErrDecryptionFailure.
func (b *CipherBox) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < IVSize+aes.BlockSize {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", common.ErrDecryptionFailure, len(blob))
	}
	iv, ct := blob[:IVSize], blob[IVSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", common.ErrDecryptionFailure)
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(b.block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func pad(src []byte, size int) []byte {
	n := size - len(src)%size
	return append(bytes.Clone(src), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(src []byte, size int) ([]byte, error) {
	if len(src) == 0 || len(src)%size != 0 {
		return nil, fmt.Errorf("%w: bad padded length", common.ErrDecryptionFailure)
	}
	n := int(src[len(src)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: invalid padding", common.ErrDecryptionFailure)
	}
	for _, c := range src[len(src)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: invalid padding", common.ErrDecryptionFailure)
		}
	}
	return src[:len(src)-n], nil
}
