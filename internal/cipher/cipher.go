// Package cipher implements the date-keyed password cipher the work-order
// tracker expects at login: AES-CBC with zero padding, base64 encoded, keyed by
// a fixed prefix, the local date as YYYYMMDD, and a fixed suffix.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"encoding/base64"
	"fmt"
	"time"

	"fulfill/internal/services"
)

const (
	DefaultKeyPrefix = "asd0"
	DefaultKeySuffix = "bjsf"
	DefaultIV        = "dongjunyaoguoqip"

	dateLayout = "20060102"
)

// DeriveKey returns the default key for the local calendar day of date.
func DeriveKey(date time.Time) []byte {
	return deriveKey(DefaultKeyPrefix, DefaultKeySuffix, date)
}

func deriveKey(prefix, suffix string, date time.Time) []byte {
	return []byte(prefix + date.Format(dateLayout) + suffix)
}

// Encrypt pads plaintext with 1 to 16 zero bytes (a full block when already
// aligned), encrypts it with AES-CBC, and returns standard base64.
func Encrypt(plaintext string, key, iv []byte) (string, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return "", err
	}
	padded := zeroPad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt and strips trailing zero bytes.
func Decrypt(ciphertext string, key, iv []byte) (string, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "cipher", "decode", "ciphertext is not base64", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", services.Wrap(services.ErrValidation, "cipher", "decrypt",
			fmt.Sprintf("ciphertext length %d is not a multiple of the block size", len(raw)), nil)
	}
	out := make([]byte, len(raw))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)
	return string(bytes.TrimRight(out, "\x00")), nil
}

func newBlock(key, iv []byte) (gocipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, services.Wrap(services.ErrConfiguration, "cipher", "key",
			fmt.Sprintf("key must be 16, 24, or 32 bytes (got %d)", len(key)), nil)
	}
	if len(iv) != aes.BlockSize {
		return nil, services.Wrap(services.ErrConfiguration, "cipher", "iv",
			fmt.Sprintf("iv must be %d bytes (got %d)", aes.BlockSize, len(iv)), nil)
	}
	return aes.NewCipher(key)
}

func zeroPad(data []byte, size int) []byte {
	pad := size - len(data)%size
	return append(data, make([]byte, pad)...)
}

// Encryptor derives the day's key from Now and encrypts login passwords.
type Encryptor struct {
	KeyPrefix string
	KeySuffix string
	IV        string
	Now       func() time.Time
}

// NewEncryptor returns an Encryptor with default parameters filled in for
// blank values.
func NewEncryptor(prefix, suffix, iv string) *Encryptor {
	if prefix == "" && suffix == "" {
		prefix, suffix = DefaultKeyPrefix, DefaultKeySuffix
	}
	if iv == "" {
		iv = DefaultIV
	}
	return &Encryptor{KeyPrefix: prefix, KeySuffix: suffix, IV: iv, Now: time.Now}
}

// KeyFor returns the key for the local calendar day of date.
func (e *Encryptor) KeyFor(date time.Time) []byte {
	return deriveKey(e.KeyPrefix, e.KeySuffix, date.Local())
}

// EncryptPassword encrypts password with the key for the current local date.
func (e *Encryptor) EncryptPassword(password string) (string, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return Encrypt(password, e.KeyFor(now()), []byte(e.IV))
}
