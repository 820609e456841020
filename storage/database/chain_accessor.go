// Copyright 2018 The voteledger Authors
// This file is part of the voteledger library.
//
// The voteledger library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The voteledger library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the voteledger library. If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/voteledger/voteledger/blockchain/types"
)

var chainSnapshotKey = []byte("ChainSnapshot")

// WriteChainSnapshot journals the whole block sequence under a single key.
// The chain is small by construction (one vote per participant), so a full
// snapshot per head mutation is cheaper than incremental bookkeeping.
func WriteChainSnapshot(db Database, blocks []*types.Block) error {
	raw, err := json.Marshal(blocks)
	if err != nil {
		return errors.Wrap(err, "encode chain snapshot")
	}
	return db.Put(chainSnapshotKey, raw)
}

// ReadChainSnapshot restores the journaled block sequence; a missing key
// yields an empty chain.
func ReadChainSnapshot(db Database) ([]*types.Block, error) {
	raw, err := db.Get(chainSnapshotKey)
	if err != nil {
		if IsNotFoundErr(err) {
			return nil, nil
		}
		return nil, err
	}
	var blocks []*types.Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, errors.Wrap(err, "decode chain snapshot")
	}
	return blocks, nil
}
