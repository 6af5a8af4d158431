// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package address

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/formatting/address"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Len is the byte length of an address: a one byte auth type id followed by
// a 32 byte public key (or key hash).
const Len = 33

var (
	ErrAmbiguous     = errors.New("address decodes as both bech32 and base64")
	ErrInvalidFormat = errors.New("address is neither bech32 nor base64")
	ErrInvalidLength = errors.New("invalid address length")

	Empty = Address{}
)

// Address is the fixed width account identifier used by the chain.
type Address [Len]byte

// Decoder turns the textual form of an address into its raw bytes.
type Decoder func(string) ([]byte, error)

// Bech32 decodes a checksummed bech32 address. The human readable part is not
// checked; only the payload is returned.
func Bech32(s string) ([]byte, error) {
	_, data, err := bech32.Decode(s)
	if err != nil {
		return nil, err
	}
	// padding was added when encoding, so it must not be added back here
	return bech32.ConvertBits(data, 5, 8, false)
}

// Base64 decodes the standard padded base64 encoding of the raw address.
func Base64(s string) ([]byte, error) {
	return base64.StdEncoding.Strict().DecodeString(s)
}

// Parse decodes [s], which must be either a bech32 or a base64 encoded
// address. A string that is valid in both encodings is rejected since the
// intended encoding can't be known.
func Parse(s string) (Address, error) {
	return parseWith(s, Bech32, Base64)
}

func parseWith(s string, decoders ...Decoder) (Address, error) {
	var (
		addr    Address
		matches int
	)
	for _, decode := range decoders {
		b, err := decode(s)
		if err != nil || len(b) != Len {
			continue
		}
		copy(addr[:], b)
		matches++
	}
	switch matches {
	case 0:
		return Empty, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	case 1:
		return addr, nil
	default:
		return Empty, fmt.Errorf("%w: %q", ErrAmbiguous, s)
	}
}

// FromBytes copies [b] into an Address.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Len {
		return Empty, fmt.Errorf("%w: expected %d bytes but got %d", ErrInvalidLength, Len, len(b))
	}
	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// FromPublicKey builds the address owned by [publicKey] under auth type [typeID].
func FromPublicKey(typeID byte, publicKey []byte) (Address, error) {
	if len(publicKey) != Len-1 {
		return Empty, fmt.Errorf("%w: expected %d byte public key but got %d", ErrInvalidLength, Len-1, len(publicKey))
	}
	var addr Address
	addr[0] = typeID
	copy(addr[1:], publicKey)
	return addr, nil
}

// String returns the base64 form, which is what decoding always produces.
func (a Address) String() string {
	return base64.StdEncoding.EncodeToString(a[:])
}

// Bech32 formats the address with the human readable part [hrp].
func (a Address) Bech32(hrp string) (string, error) {
	return address.FormatBech32(hrp, a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
