package managers

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/appforge/connectorhub/pkg/domain"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	envelopeSaltSize = 16
	envelopeTagSize  = chacha20poly1305.Overhead
	envelopeMinSize  = envelopeSaltSize + chacha20poly1305.NonceSize + envelopeTagSize
)

var hkdfInfo = []byte("connectorhub-credential-encryption")

// encryptionService implements authenticated encryption of credential blobs.
// Each call derives a fresh key from the master key and a random salt, so
// encrypting the same plaintext twice never yields the same envelope.
//
// Envelope layout: base64(salt || nonce || authTag || ciphertext).
type encryptionService struct {
	masterKey []byte
}

func NewEncryptionService(masterKey string) (domain.EncryptionService, error) {
	if masterKey == "" {
		return nil, domain.ErrMissingMasterKey
	}

	return &encryptionService{
		masterKey: []byte(masterKey),
	}, nil
}

func (s *encryptionService) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, envelopeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: failed to generate salt: %v", domain.ErrEncryptionFailed, err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", domain.ErrEncryptionFailed, err)
	}

	aead, err := s.newAEAD(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag; the envelope stores it detached, ahead of the
	// ciphertext.
	ciphertext := sealed[:len(sealed)-envelopeTagSize]
	tag := sealed[len(sealed)-envelopeTagSize:]

	envelope := make([]byte, 0, envelopeMinSize+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

func (s *encryptionService) Decrypt(envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 envelope", domain.ErrDecryptionFailed)
	}

	if len(raw) < envelopeMinSize {
		return "", fmt.Errorf("%w: envelope too short", domain.ErrDecryptionFailed)
	}

	salt := raw[:envelopeSaltSize]
	nonce := raw[envelopeSaltSize : envelopeSaltSize+chacha20poly1305.NonceSize]
	tag := raw[envelopeSaltSize+chacha20poly1305.NonceSize : envelopeMinSize]
	ciphertext := raw[envelopeMinSize:]

	aead, err := s.newAEAD(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+envelopeTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", domain.ErrDecryptionFailed)
	}

	return string(plaintext), nil
}

func (s *encryptionService) EncryptCredentials(credentials any) (string, error) {
	data, err := json.Marshal(credentials)
	if err != nil {
		return "", fmt.Errorf("%w: failed to serialize credentials", domain.ErrEncryptionFailed)
	}

	return s.Encrypt(string(data))
}

func (s *encryptionService) DecryptCredentials(envelope string, out any) error {
	plaintext, err := s.Decrypt(envelope)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return fmt.Errorf("%w: failed to deserialize credentials", domain.ErrDecryptionFailed)
	}

	return nil
}

func (s *encryptionService) newAEAD(salt []byte) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, s.masterKey, salt, hkdfInfo)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("%w: key derivation failed", domain.ErrEncryptionFailed)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher init failed", domain.ErrEncryptionFailed)
	}

	return aead, nil
}
