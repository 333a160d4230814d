package paytm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ChecksumField is the payload key carrying the gateway signature.
const ChecksumField = "CHECKSUMHASH"

const saltLength = 4

var checksumIV = []byte("@@@@&&&&####$$$$")

// ErrInvalidChecksum is returned when a signature cannot be decoded or decrypted with the merchant key.
var ErrInvalidChecksum = errors.New("paytm: invalid checksum")

// GenerateSignature signs the flat parameter map with the merchant key. The CHECKSUMHASH
// entry, when present, is ignored.
func GenerateSignature(params map[string]string, key string) (string, error) {
	return GenerateSignatureByString(StringByParams(params), key)
}

// GenerateSignatureByString signs an arbitrary string, typically a JSON request body.
func GenerateSignatureByString(value, key string) (string, error) {
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	return encrypt(calculateHash(value, salt), key)
}

// VerifySignature reports whether checksum was produced over params with key.
func VerifySignature(params map[string]string, key, checksum string) (bool, error) {
	return VerifySignatureByString(StringByParams(params), key, checksum)
}

// VerifySignatureByString reports whether checksum was produced over value with key.
func VerifySignatureByString(value, key, checksum string) (bool, error) {
	decrypted, err := decrypt(strings.TrimSpace(checksum), key)
	if err != nil {
		return false, err
	}
	if len(decrypted) < saltLength {
		return false, ErrInvalidChecksum
	}
	salt := decrypted[len(decrypted)-saltLength:]
	expected := calculateHash(value, salt)
	return subtle.ConstantTimeCompare([]byte(decrypted), []byte(expected)) == 1, nil
}

// StringByParams joins the values of params ordered by key with "|". Null values become empty.
func StringByParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ChecksumField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if strings.EqualFold(v, "null") {
			v = ""
		}
		values = append(values, v)
	}
	return strings.Join(values, "|")
}

// Verifier binds the merchant key to the checksum primitive.
type Verifier struct {
	MerchantKey string
}

// Verify implements the callback handler's checksum contract.
func (v Verifier) Verify(params map[string]string, checksum string) (bool, error) {
	if strings.TrimSpace(v.MerchantKey) == "" {
		return false, errors.New("paytm: merchant key not configured")
	}
	if strings.TrimSpace(checksum) == "" {
		return false, nil
	}
	return VerifySignature(params, v.MerchantKey, checksum)
}

// Sign produces a checksum for params with the bound key.
func (v Verifier) Sign(params map[string]string) (string, error) {
	return GenerateSignature(params, v.MerchantKey)
}

func calculateHash(value, salt string) string {
	sum := sha256.Sum256([]byte(value + "|" + salt))
	return hex.EncodeToString(sum[:]) + salt
}

func randomSalt() (string, error) {
	buf := make([]byte, saltLength*3/4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("paytm: generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func newCipher(key string) (cipher.Block, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("paytm: merchant key: %w", err)
	}
	return block, nil
}

func encrypt(plain, key string) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, checksumIV).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decrypt(encoded, key string) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidChecksum
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrInvalidChecksum
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, checksumIV).CryptBlocks(out, raw)
	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, ErrInvalidChecksum
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrInvalidChecksum
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidChecksum
		}
	}
	return data[:len(data)-n], nil
}
