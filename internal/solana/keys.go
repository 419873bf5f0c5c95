// Package solana implements the address encoding, keypair handling and
// transaction wire format the gateway needs to sign and submit transfers.
package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of a public key.
const AddressLength = ed25519.PublicKeySize

// SignatureLength is the byte length of a transaction signature.
const SignatureLength = ed25519.SignatureSize

// Keypair holds an ed25519 signing key. Private key material must stay in
// the narrowest possible scope and is never logged or persisted.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{pub: pub, priv: priv}, nil
}

// ParsePrivateKey decodes a base58 private key. Both the 64-byte expanded
// form and the 32-byte seed form are accepted.
func ParsePrivateKey(encoded string) (Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return Keypair{}, fmt.Errorf("private key is not valid base58")
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(raw)
		return Keypair{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
	case ed25519.SeedSize:
		priv := ed25519.NewKeyFromSeed(raw)
		return Keypair{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
	default:
		return Keypair{}, fmt.Errorf("private key must decode to %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}
}

// Address returns the base58 public key.
func (k Keypair) Address() string {
	return base58.Encode(k.pub)
}

// PublicKeyBytes returns a copy of the raw public key.
func (k Keypair) PublicKeyBytes() []byte {
	return append([]byte(nil), k.pub...)
}

// PrivateKeyBase58 returns the 64-byte private key in base58. Returned once
// to the caller at wallet creation; never stored.
func (k Keypair) PrivateKeyBase58() string {
	return base58.Encode(k.priv)
}

// Sign signs a transaction message.
func (k Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// ValidateAddress rejects strings that are not base58 32-byte public keys.
// Every address-taking operation runs this before any remote call.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("address is not valid base58")
	}
	if len(raw) != AddressLength {
		return fmt.Errorf("address must decode to %d bytes, got %d", AddressLength, len(raw))
	}
	return nil
}

// ValidateSignature rejects strings that are not base58 64-byte signatures.
func ValidateSignature(signature string) error {
	raw, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("signature is not valid base58")
	}
	if len(raw) != SignatureLength {
		return fmt.Errorf("signature must decode to %d bytes, got %d", SignatureLength, len(raw))
	}
	return nil
}

// DecodeAddress returns the raw 32 public key bytes of a base58 address.
func DecodeAddress(address string) ([]byte, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	return base58.Decode(address)
}
