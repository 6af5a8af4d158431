// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"strconv"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
)

// DefaultValidity is how far in the future new payloads expire. It stays
// under the one minute validity window chains enforce.
const DefaultValidity = 59 * time.Second

// NewPayload builds a payload expiring [DefaultValidity] after [clock]'s
// current time.
func NewPayload(clock *mockable.Clock, chainID ids.ID, maxFee uint64, actions []Action) Payload {
	expiry := clock.Time().Add(DefaultValidity).UnixMilli()
	return Payload{
		Timestamp: strconv.FormatInt(expiry, 10),
		ChainID:   chainID.String(),
		MaxFee:    strconv.FormatUint(maxFee, 10),
		Actions:   actions,
	}
}
