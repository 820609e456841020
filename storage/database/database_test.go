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
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteledger/voteledger/blockchain/types"
)

func TestMemDatabase(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	require.NoError(t, db.Put([]byte("key"), []byte("value")))

	ok, err := db.Has([]byte("key"))
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := db.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	require.NoError(t, db.Delete([]byte("key")))
	_, err = db.Get([]byte("key"))
	assert.True(t, IsNotFoundErr(err))
	assert.Equal(t, 0, db.Len())
}

func TestLDBDatabaseReopen(t *testing.T) {
	dir, err := ioutil.TempDir("", "voteledger-db")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	db, err := NewLDBDatabase(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("key"), []byte("value")))
	db.Close()

	db, err = NewLDBDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	value, err := db.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
}

func TestChainSnapshotRoundTrip(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	// Missing snapshot reads back as an empty chain.
	blocks, err := ReadChainSnapshot(db)
	require.NoError(t, err)
	assert.Nil(t, blocks)

	stored := []*types.Block{
		{
			Miner:     "1234",
			Hash:      "000abc",
			PrevHash:  "Genesis Block",
			Height:    0,
			Nonce:     42,
			Data:      []*types.Transaction{{AddrFrom: "a", AddrTo: "b", Signature: "s", Pubkey: "p"}},
			Timestamp: "1531853048.28545",
		},
	}
	require.NoError(t, WriteChainSnapshot(db, stored))

	blocks, err = ReadChainSnapshot(db)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, stored[0].Hash, blocks[0].Hash)
	assert.Equal(t, stored[0].Nonce, blocks[0].Nonce)
	require.Len(t, blocks[0].Data, 1)
	assert.True(t, blocks[0].Data[0].Equal(stored[0].Data[0]))
}
