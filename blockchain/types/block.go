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

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/voteledger/voteledger/params"
)

var (
	minedBlocksCounter  = metrics.NewRegisteredCounter("types/block/mined", nil)
	miningAttemptsMeter = metrics.NewRegisteredMeter("types/block/attempts", nil)
)

// Block is one element of the chain. The first six fields, in this order,
// form the hashed image (with hash held empty and timestamp absent); the
// timestamp travels only in the distributed record.
type Block struct {
	Miner     string         `json:"miner"`
	Hash      string         `json:"hash"`
	PrevHash  string         `json:"prevHash"`
	Height    uint64         `json:"height"`
	Nonce     uint64         `json:"nonce"`
	Data      []*Transaction `json:"data"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// NewBlock assembles an unmined block over a copy of the data list.
func NewBlock(prevHash string, height uint64, data []*Transaction, miner string) *Block {
	return &Block{
		Miner:    miner,
		PrevHash: prevHash,
		Height:   height,
		Data:     copyTransactions(data),
	}
}

// HashImage returns the canonical pre-hash serialisation of the block at its
// current nonce.
func (b *Block) HashImage() []byte {
	items := make([][]byte, len(b.Data))
	for i, tx := range b.Data {
		items[i] = tx.WireBytes()
	}
	return hashImage(b.Miner, b.PrevHash, b.Height, b.Nonce, items)
}

// Mine spins the nonce until the hash meets the proof-of-work target, then
// seals the block with its hash and completion timestamp. Runs to completion.
func (b *Block) Mine() {
	for {
		digest := sha256.Sum256(b.HashImage())
		hash := hex.EncodeToString(digest[:])
		miningAttemptsMeter.Mark(1)
		if strings.HasPrefix(hash, params.PoWPrefix) {
			b.Hash = hash
			b.Timestamp = formatTimestamp(time.Now())
			minedBlocksCounter.Inc(1)
			return
		}
		b.Nonce++
	}
}

// HasValidPoW reports whether the stored hash meets the target prefix.
func (b *Block) HasValidPoW() bool {
	return strings.HasPrefix(b.Hash, params.PoWPrefix)
}

// TimestampSeconds parses the seal timestamp as fractional epoch seconds.
func (b *Block) TimestampSeconds() (float64, error) {
	return strconv.ParseFloat(b.Timestamp, 64)
}

// formatTimestamp renders t as the decimal string of fractional epoch
// seconds, the timestamp wire form.
func formatTimestamp(t time.Time) string {
	sec := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
