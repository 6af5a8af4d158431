// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"

	"github.com/ava-labs/hypersdk-client/address"
)

// ED25519ID is the auth type id of ed25519 signatures.
const ED25519ID uint8 = 0

var ErrInvalidPrivateKey = errors.New("invalid private key")

// Signer authorizes transactions.
type Signer interface {
	AuthTypeID() uint8
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

var _ Signer = (*ED25519Signer)(nil)

type ED25519Signer struct {
	privateKey ed25519.PrivateKey
}

// NewED25519Signer accepts either a 32 byte seed or a 64 byte expanded
// private key.
func NewED25519Signer(key []byte) (*ED25519Signer, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return &ED25519Signer{privateKey: ed25519.NewKeyFromSeed(key)}, nil
	case ed25519.PrivateKeySize:
		return &ED25519Signer{privateKey: ed25519.PrivateKey(append([]byte(nil), key...))}, nil
	default:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPrivateKey, len(key))
	}
}

// GenerateED25519Signer returns a signer for a fresh random key.
func GenerateED25519Signer() (*ED25519Signer, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ED25519Signer{privateKey: privateKey}, nil
}

func (*ED25519Signer) AuthTypeID() uint8 { return ED25519ID }

func (s *ED25519Signer) PublicKey() []byte {
	return s.privateKey.Public().(ed25519.PublicKey)
}

func (s *ED25519Signer) Seed() []byte {
	return s.privateKey.Seed()
}

func (s *ED25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, msg), nil
}

// Address is the account controlled by [s].
func (s *ED25519Signer) Address() address.Address {
	addr, _ := address.FromPublicKey(ED25519ID, s.PublicKey())
	return addr
}

// VerifyED25519 checks [sig] over [msg].
func VerifyED25519(publicKey, msg, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, msg, sig)
}
