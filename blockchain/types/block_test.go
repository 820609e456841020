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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteledger/voteledger/params"
)

func TestNewBlockFields(t *testing.T) {
	key := newTestKey(t)
	signed, err := NewTransaction(params.GenesisAddress, params.GenesisPrevHash).SignedForm(key)
	require.NoError(t, err)

	block := NewBlock(params.GenesisPrevHash, 0, []*Transaction{signed}, "1234")
	assert.Equal(t, "1234", block.Miner)
	assert.Equal(t, "", block.Hash)
	assert.Equal(t, params.GenesisPrevHash, block.PrevHash)
	assert.Equal(t, uint64(0), block.Height)
	assert.Equal(t, uint64(0), block.Nonce)
	assert.Equal(t, "", block.Timestamp)
	require.Len(t, block.Data, 1)
	assert.True(t, block.Data[0].Equal(signed))
}

func TestNewBlockCopiesData(t *testing.T) {
	tx := &Transaction{AddrFrom: "a", AddrTo: "b"}
	block := NewBlock("prev", 1, []*Transaction{tx}, "m")
	tx.AddrTo = "c"
	assert.Equal(t, "b", block.Data[0].AddrTo)
}

// TestMiningVector pins the canonical serialisation: any divergence from the
// wire byte format shows up as a different nonce or digest.
func TestMiningVector(t *testing.T) {
	const want = "00015080dc53b9ab05840ec3cbebe26bb4c13059b9b8c828404a730fa32e134c"
	item := encodeString("some random data")

	for nonce := uint64(0); ; nonce++ {
		image := hashImage("1234", "some hash", 0, nonce, [][]byte{item})
		digest := sha256.Sum256(image)
		hash := hex.EncodeToString(digest[:])
		if strings.HasPrefix(hash, params.PoWPrefix) {
			assert.Equal(t, want, hash)
			assert.Equal(t, uint64(7108), nonce)
			return
		}
	}
}

func TestHashImageFormat(t *testing.T) {
	image := hashImage("1234", "some hash", 0, 7, [][]byte{encodeString("x")})
	assert.Equal(t,
		`{"miner": "1234", "hash": "", "prevHash": "some hash", "height": 0, "nonce": 7, "data": ["x"]}`,
		string(image))
}

func TestMineSealsBlock(t *testing.T) {
	key := newTestKey(t)
	signed, err := NewTransaction("1234", "4567").SignedForm(key)
	require.NoError(t, err)

	block := NewBlock("prev hash", 1, []*Transaction{signed}, "1234")
	block.Mine()

	assert.True(t, block.HasValidPoW())
	_, err = block.TimestampSeconds()
	assert.NoError(t, err)

	// The seal timestamp is not part of the hashed image.
	digest := sha256.Sum256(block.HashImage())
	assert.Equal(t, block.Hash, hex.EncodeToString(digest[:]))
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	now := time.Now()
	block := &Block{Timestamp: formatTimestamp(now)}
	sec, err := block.TimestampSeconds()
	require.NoError(t, err)
	assert.InDelta(t, float64(now.UnixNano())/float64(time.Second), sec, 1e-3)
}
