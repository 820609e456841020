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

package blockchain

import (
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteledger/voteledger/blockchain/types"
	"github.com/voteledger/voteledger/crypto"
	"github.com/voteledger/voteledger/params"
	"github.com/voteledger/voteledger/storage/database"
)

// votedChainFixture is a two-block chain captured from a live network: miner
// "5106" mined genesis and then voted for candidate "12345".
const votedChainFixture = `[{"data":[{"addr_from":"Genesis Addr","addr_to":"Genesis Block","pubkey":"LS0tLS1CRUdJTiBQVUJMSUMgS0VZLS0tLS0KTUlHZk1BMEdDU3FHU0liM0RRRUJBUVVBQTRHTkFEQ0JpUUtCZ1FEbUk0U1BjSTI0eVpqY0o0eHZjcHY1aHBXMgpQYVdkYWpYUm84VGU3VktBcnB5Skh2N0VMSUQ1dEZXKzNwRk8rcVBYYk1TKzk4bnl6Zk1ockY3Rk5zcVlwdlBRCmxCekxYZXZJWDQvdXlPa0p0UHFBM1VTdExXL3ZjRTR2NnNTcVNQMndRaVhsazV5TkVGaGVaNGxNYXVrNzUyemIKekhic2xpc1A5SlJYNCtiQS93SURBUUFCCi0tLS0tRU5EIFBVQkxJQyBLRVktLS0tLT09","signature":"G+jAyLxJ1xQIPP3vzrX80sYzZ+JX78OSOxc9kGWqxQ9nRTrfNhnXPA4xu6fZeuidjD1chPuYTJyu77J0M5lRFAF4NbT1QemKAon9wBGtjklX4FpEZAmDK/ex58Etj2TY3fgFqByKzKO/eMOnjBqBfO0HQkxO+cob58S8gLWEt3I="}],"hash":"000fc4a7168fd501a2576da8841d62f781061cb14abb8aac7300a8641477773b","height":0,"miner":"5106","nonce":2923,"prevHash":"Genesis Block","timestamp":"1531853048.28545"},{"data":[{"addr_from":"5106","addr_to":"12345","pubkey":"LS0tLS1CRUdJTiBQVUJMSUMgS0VZLS0tLS0KTUlHZk1BMEdDU3FHU0liM0RRRUJBUVVBQTRHTkFEQ0JpUUtCZ1FEbUk0U1BjSTI0eVpqY0o0eHZjcHY1aHBXMgpQYVdkYWpYUm84VGU3VktBcnB5Skh2N0VMSUQ1dEZXKzNwRk8rcVBYYk1TKzk4bnl6Zk1ockY3Rk5zcVlwdlBRCmxCekxYZXZJWDQvdXlPa0p0UHFBM1VTdExXL3ZjRTR2NnNTcVNQMndRaVhsazV5TkVGaGVaNGxNYXVrNzUyemIKekhic2xpc1A5SlJYNCtiQS93SURBUUFCCi0tLS0tRU5EIFBVQkxJQyBLRVktLS0tLT09","signature":"cQ7WZNVP9J8LD1WMB1H6KGBCHkXw+NVgISFbWcWsvgsBFgl5FqIA0SrT0fLYjoxGzw+kIMBlF1dOZ/G49jIJfqclqbQQiwMnsor3XgJb4Inqt6Q6CR/zxMWeFN1m1VAvnX8PgZxOuja+WSV2Lp8cLzsIsZBHWpCtOSeChJ2zV0w="}],"hash":"00057d09370bcd45fa37ef5e5085e7923658d03633b2d444497dd72a18a33baa","height":1,"miner":"5106","nonce":1046,"prevHash":"000fc4a7168fd501a2576da8841d62f781061cb14abb8aac7300a8641477773b","timestamp":"1531853066.532551"}]`

func newTestKey(t *testing.T) *rsa.PrivateKey {
	key, err := crypto.GenerateKey(1024)
	require.NoError(t, err)
	return key
}

func signedVote(t *testing.T, key *rsa.PrivateKey, from, to string) *types.Transaction {
	signed, err := types.NewTransaction(from, to).SignedForm(key)
	require.NoError(t, err)
	return signed
}

func newChainWithGenesis(t *testing.T, key *rsa.PrivateKey, minerID string) *BlockChain {
	bc := NewBlockChain(nil)
	require.NoError(t, bc.CreateGenesisBlock(key, minerID))
	return bc
}

func TestEmptyChain(t *testing.T) {
	bc := NewBlockChain(nil)
	assert.True(t, bc.Empty())
}

func TestCreateGenesisBlock(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")

	snapshot := bc.Snapshot()
	require.Len(t, snapshot, 1)
	genesis := snapshot[0]
	assert.True(t, genesis.HasValidPoW())
	assert.Equal(t, params.GenesisPrevHash, genesis.PrevHash)
	assert.Equal(t, uint64(0), genesis.Height)
	assert.Equal(t, "1234", genesis.Miner)
	require.Len(t, genesis.Data, 1)
	assert.Equal(t, params.GenesisAddress, genesis.Data[0].AddrFrom)
	assert.NoError(t, genesis.Data[0].VerifySignature())
}

func TestValidateBlock(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")
	genesis := bc.Snapshot()[0]

	block := types.NewBlock(genesis.Hash, genesis.Height+1,
		[]*types.Transaction{signedVote(t, key, "1234", "4567")}, "1234")
	block.Mine()
	assert.True(t, bc.ValidateBlock(block, genesis))

	// Mess with the linkage.
	block.PrevHash = "00012345"
	assert.False(t, bc.ValidateBlock(block, genesis))

	// Mess with the height: linkage holds, but the canonical hash no longer
	// matches the received digest.
	block.PrevHash = genesis.Hash
	block.Height = 5
	assert.False(t, bc.ValidateBlock(block, genesis))

	// Mess with the proof of work.
	block.Height = genesis.Height + 1
	block.Hash = "0111111111"
	assert.False(t, bc.ValidateBlock(block, genesis))

	// Keep the target prefix but break the digest.
	block.Hash = "0001111111"
	assert.False(t, bc.ValidateBlock(block, genesis))

	// A block carrying a transaction with a forged signature never validates.
	forged := signedVote(t, key, "1234", "4567")
	forged.Signature = "L7TBH0ahox4GOAdF8om2ijbNVPcO3Ys6+KdvfFhvfX/SysetaJw+0rlU6VMuzwB0rQ/X2+ioAdtXcstutSeRAfZTYP+utaNFL1nP48as/C6mca4sp+ya39AWWLIUuZeGMit9kSUavx6uX5cSAuqXB4tcK/bUSVghtMC9vG4JyC8="
	bad := types.NewBlock(genesis.Hash, genesis.Height+1, []*types.Transaction{forged}, "1234")
	bad.Mine()
	assert.False(t, bc.ValidateBlock(bad, genesis))
}

func TestHasVotedFixture(t *testing.T) {
	var blocks []*types.Block
	require.NoError(t, json.Unmarshal([]byte(votedChainFixture), &blocks))

	bc := NewBlockChain(nil)
	bc.InstallChain(blocks)

	assert.True(t, bc.HasVoted("5106"))
	assert.False(t, bc.HasVoted("1234"))
}

func TestHasVotedSeesPool(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")
	assert.False(t, bc.HasVoted("1234"))

	bc.AddTransaction(signedVote(t, key, "1234", "12345"))
	assert.True(t, bc.HasVoted("1234"))
}

func TestAddTransactionDeduplicates(t *testing.T) {
	key := newTestKey(t)
	bc := NewBlockChain(nil)
	tx := signedVote(t, key, "1234", "12345")

	bc.AddTransaction(tx)
	bc.AddTransaction(tx)
	assert.Len(t, bc.PendingPool(), 1)
}

func TestMineNextExtendsChainAndClearsPool(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")
	tx := signedVote(t, key, "1234", "12345")
	bc.AddTransaction(tx)

	block := bc.MineNext("1234")
	require.NotNil(t, block)

	snapshot := bc.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, snapshot[0].Hash, snapshot[1].PrevHash)
	assert.Equal(t, snapshot[0].Height+1, snapshot[1].Height)
	assert.True(t, blockContains(snapshot[1], tx))
	assert.Empty(t, bc.PendingPool())
}

func TestMineNextOnEmptyChain(t *testing.T) {
	bc := NewBlockChain(nil)
	assert.Nil(t, bc.MineNext("1234"))
}

func TestAcceptDropsGapBlocks(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")
	genesis := bc.Snapshot()[0]

	gap := types.NewBlock(genesis.Hash, genesis.Height+3, nil, "1234")
	gap.Mine()
	bc.AcceptBlock(gap)
	assert.Len(t, bc.Snapshot(), 1)
}

func TestAcceptGenesisOnEmptyChain(t *testing.T) {
	key := newTestKey(t)
	source := newChainWithGenesis(t, key, "1234")
	genesis := source.Snapshot()[0]

	bc := NewBlockChain(nil)
	bc.AcceptBlock(genesis)
	require.Len(t, bc.Snapshot(), 1)
	assert.Equal(t, genesis.Hash, bc.Snapshot()[0].Hash)

	// A non-genesis block is ignored on an empty chain.
	other := NewBlockChain(nil)
	tampered := *genesis
	tampered.PrevHash = "not the genesis literal"
	other.AcceptBlock(&tampered)
	assert.True(t, other.Empty())
}

func TestAcceptIsIdempotentOnEqualHead(t *testing.T) {
	key := newTestKey(t)
	bc := newChainWithGenesis(t, key, "1234")
	tx := signedVote(t, key, "1234", "12345")
	bc.AddTransaction(tx)
	block := bc.MineNext("1234")
	require.NotNil(t, block)

	before := bc.Snapshot()
	bc.AcceptBlock(block)
	after := bc.Snapshot()
	require.Len(t, after, len(before))
	assert.Equal(t, before[len(before)-1].Hash, after[len(after)-1].Hash)
	assert.Empty(t, bc.PendingPool())
}

func TestTieBreak(t *testing.T) {
	keyA := newTestKey(t)
	keyB := newTestKey(t)
	bc := newChainWithGenesis(t, keyA, "5")
	genesis := bc.Snapshot()[0]

	txA := signedVote(t, keyA, "20", "12345")
	blockA := types.NewBlock(genesis.Hash, genesis.Height+1, []*types.Transaction{txA}, "20")
	blockA.Mine()
	bc.AcceptBlock(blockA)
	require.Len(t, bc.Snapshot(), 2)

	// Same height, equal timestamp, larger miner id: head stands.
	txB := signedVote(t, keyB, "30", "5678")
	blockB := types.NewBlock(genesis.Hash, genesis.Height+1, []*types.Transaction{txB}, "30")
	blockB.Mine()
	blockB.Timestamp = blockA.Timestamp
	bc.AcceptBlock(blockB)
	assert.Equal(t, blockA.Hash, bc.Snapshot()[1].Hash)
	assert.Empty(t, bc.PendingPool())

	// Equal timestamp, smaller miner id: the incoming block wins and the
	// ejected transaction returns to the pool.
	txC := signedVote(t, keyB, "10", "9999")
	blockC := types.NewBlock(genesis.Hash, genesis.Height+1, []*types.Transaction{txC}, "10")
	blockC.Mine()
	blockC.Timestamp = blockA.Timestamp
	bc.AcceptBlock(blockC)
	require.Len(t, bc.Snapshot(), 2)
	assert.Equal(t, blockC.Hash, bc.Snapshot()[1].Hash)

	pool := bc.PendingPool()
	require.Len(t, pool, 1)
	assert.True(t, pool[0].Equal(txA))

	// Strictly earlier timestamp wins regardless of miner id.
	txD := signedVote(t, keyB, "99", "12345")
	blockD := types.NewBlock(genesis.Hash, genesis.Height+1, []*types.Transaction{txD}, "99")
	blockD.Mine()
	blockD.Timestamp = "1531853048.28545"
	bc.AcceptBlock(blockD)
	require.Len(t, bc.Snapshot(), 2)
	assert.Equal(t, blockD.Hash, bc.Snapshot()[1].Hash)

	pool = bc.PendingPool()
	require.Len(t, pool, 2)
}

func TestJournalRestore(t *testing.T) {
	db := database.NewMemDatabase()
	key := newTestKey(t)

	bc := NewBlockChain(db)
	require.NoError(t, bc.CreateGenesisBlock(key, "1234"))
	head := bc.Snapshot()[0]

	restored := NewBlockChain(db)
	require.False(t, restored.Empty())
	assert.Equal(t, head.Hash, restored.Snapshot()[0].Hash)
}
