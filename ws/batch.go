// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ws

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

var ErrTruncatedBatch = errors.New("truncated batch")

func frameSize(msg []byte) int {
	return wrappers.IntLen + len(msg)
}

// EncodeBatch frames each of [msgs] as uint32(length) ‖ bytes and
// concatenates the frames in order.
func EncodeBatch(msgs [][]byte) ([]byte, error) {
	size := 0
	for _, msg := range msgs {
		size += frameSize(msg)
	}
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, size),
		MaxSize: size,
	}
	for _, msg := range msgs {
		p.PackBytes(msg)
	}
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes, nil
}

// DecodeBatch splits [b] back into the messages EncodeBatch framed. The
// returned messages alias [b].
func DecodeBatch(b []byte) ([][]byte, error) {
	var (
		p    = wrappers.Packer{Bytes: b}
		msgs [][]byte
	)
	for p.Offset < len(b) {
		msg := p.UnpackBytes()
		if p.Errored() {
			return nil, fmt.Errorf("%w: frame %d at offset %d: %w", ErrTruncatedBatch, len(msgs), p.Offset, p.Err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
