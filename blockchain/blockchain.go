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

// Package blockchain holds the replicated vote ledger: the ordered block
// storage, the pending transaction pool, block validation and the
// chain-head reconciliation protocol.
package blockchain

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rcrowley/go-metrics"

	"github.com/voteledger/voteledger/blockchain/types"
	"github.com/voteledger/voteledger/log"
	"github.com/voteledger/voteledger/params"
	"github.com/voteledger/voteledger/storage/database"
)

var logger = log.NewModuleLogger(log.Blockchain)

var (
	extendedBlockCounter  = metrics.NewRegisteredCounter("chain/accept/extend", nil)
	replacedHeadCounter   = metrics.NewRegisteredCounter("chain/accept/replace", nil)
	discardedBlockCounter = metrics.NewRegisteredCounter("chain/accept/discard", nil)
	recoveredTxCounter    = metrics.NewRegisteredCounter("chain/pool/recovered", nil)
	poolAddCounter        = metrics.NewRegisteredCounter("chain/pool/add", nil)
	invalidBlockCounter   = metrics.NewRegisteredCounter("chain/validate/invalid", nil)
	invalidTxCounter      = metrics.NewRegisteredCounter("chain/validate/invalidtx", nil)
	chainHeightGauge      = metrics.NewRegisteredGauge("chain/height", nil)
)

// BlockChain is the ordered block sequence plus the pending transaction pool.
// storage is guarded by mu, the pool by poolMu; neither lock is ever held
// across an outbound request, and mining runs without either.
type BlockChain struct {
	mu      sync.Mutex
	storage []*types.Block

	poolMu sync.Mutex
	pool   []*types.Transaction

	db database.Database // chain journal, may be nil
}

// NewBlockChain creates an empty chain. When a journal database is given and
// holds a snapshot from a previous run, the chain is restored from it.
func NewBlockChain(db database.Database) *BlockChain {
	bc := &BlockChain{db: db}
	if db != nil {
		blocks, err := database.ReadChainSnapshot(db)
		if err != nil {
			logger.Error("Failed to read chain journal", "err", err)
		} else if len(blocks) > 0 {
			bc.storage = blocks
			chainHeightGauge.Update(int64(blocks[len(blocks)-1].Height))
			logger.Info("Restored chain from journal", "blocks", len(blocks))
		}
	}
	return bc
}

// Empty reports whether the chain holds no blocks.
func (bc *BlockChain) Empty() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.storage) == 0
}

// InstallChain replaces storage wholesale from a peer's snapshot. The
// snapshot is trusted; bootstrap is the only caller.
func (bc *BlockChain) InstallChain(blocks []*types.Block) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.storage = blocks
	if len(blocks) > 0 {
		chainHeightGauge.Update(int64(blocks[len(blocks)-1].Height))
	}
	bc.persist()
	logger.Info("Installed chain snapshot", "blocks", len(blocks))
}

// CreateGenesisBlock mines the height-0 block carrying the signed genesis
// transaction and makes it the whole chain.
func (bc *BlockChain) CreateGenesisBlock(key *rsa.PrivateKey, minerID string) error {
	tx := types.NewTransaction(params.GenesisAddress, params.GenesisPrevHash)
	signed, err := tx.SignedForm(key)
	if err != nil {
		return err
	}
	block := types.NewBlock(params.GenesisPrevHash, 0, []*types.Transaction{signed}, minerID)
	block.Mine()

	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.storage = []*types.Block{block}
	chainHeightGauge.Update(0)
	bc.persist()
	logger.Info("Created genesis block", "hash", block.Hash, "miner", minerID)
	return nil
}

// HasVoted reports whether minerID already appears as a transaction source in
// any committed block or in the pool.
func (bc *BlockChain) HasVoted(minerID string) bool {
	bc.mu.Lock()
	for _, block := range bc.storage {
		for _, tx := range block.Data {
			if tx.AddrFrom == minerID {
				bc.mu.Unlock()
				return true
			}
		}
	}
	bc.mu.Unlock()

	bc.poolMu.Lock()
	defer bc.poolMu.Unlock()
	for _, tx := range bc.pool {
		if tx.AddrFrom == minerID {
			return true
		}
	}
	return false
}

// AddTransaction appends a signed transaction to the pool unless an equal
// record is already pending.
func (bc *BlockChain) AddTransaction(tx *types.Transaction) {
	bc.poolMu.Lock()
	defer bc.poolMu.Unlock()
	for _, pending := range bc.pool {
		if pending.Equal(tx) {
			logger.Debug("Transaction already pending", "addr_from", tx.AddrFrom)
			return
		}
	}
	bc.pool = append(bc.pool, tx)
	poolAddCounter.Inc(1)
}

// removeFromPool drops every pool transaction that appears in the block.
func (bc *BlockChain) removeFromPool(block *types.Block) {
	bc.poolMu.Lock()
	defer bc.poolMu.Unlock()
	kept := bc.pool[:0]
	for _, pending := range bc.pool {
		committed := false
		for _, tx := range block.Data {
			if pending.Equal(tx) {
				committed = true
				break
			}
		}
		if !committed {
			kept = append(kept, pending)
		}
	}
	bc.pool = kept
}

// ValidateTransaction checks a wire record's signature.
func (bc *BlockChain) ValidateTransaction(tx *types.Transaction) error {
	if err := tx.VerifySignature(); err != nil {
		invalidTxCounter.Inc(1)
		return err
	}
	return nil
}

// ValidateBlock checks a block against its predecessor: linkage, the
// proof-of-work target, the canonical hash, and every carried signature.
// The hash check rebuilds the pre-hash image from the received fields rather
// than re-running the mining loop.
func (bc *BlockChain) ValidateBlock(block, prevBlock *types.Block) bool {
	if prevBlock != nil && block.PrevHash != prevBlock.Hash {
		invalidBlockCounter.Inc(1)
		logger.Debug("Block links to wrong predecessor", "prevHash", block.PrevHash)
		return false
	}
	if !block.HasValidPoW() {
		invalidBlockCounter.Inc(1)
		logger.Debug("Block misses proof-of-work target", "hash", block.Hash)
		return false
	}
	rebuilt := types.NewBlock(block.PrevHash, block.Height, block.Data, block.Miner)
	rebuilt.Nonce = block.Nonce
	digest := sha256.Sum256(rebuilt.HashImage())
	if hex.EncodeToString(digest[:]) != block.Hash {
		invalidBlockCounter.Inc(1)
		logger.Debug("Block hash does not match canonical image", "hash", block.Hash)
		return false
	}
	for _, tx := range block.Data {
		if err := tx.VerifySignature(); err != nil {
			invalidTxCounter.Inc(1)
			logger.Debug("Block carries invalid transaction", "addr_from", tx.AddrFrom)
			return false
		}
	}
	return true
}

// MineNext assembles a block from the head and the current pool, mines it and
// submits it through the chain's own acceptance path. Returns nil when the
// chain is empty.
func (bc *BlockChain) MineNext(minerID string) *types.Block {
	bc.mu.Lock()
	if len(bc.storage) == 0 {
		bc.mu.Unlock()
		return nil
	}
	head := bc.storage[len(bc.storage)-1]
	prevHash, height := head.Hash, head.Height+1
	bc.mu.Unlock()

	bc.poolMu.Lock()
	data := make([]*types.Transaction, len(bc.pool))
	copy(data, bc.pool)
	bc.poolMu.Unlock()

	block := types.NewBlock(prevHash, height, data, minerID)
	block.Mine()
	logger.Info("Mined block", "height", block.Height, "hash", block.Hash, "txs", len(block.Data))
	bc.AcceptBlock(block)
	return block
}

// AcceptBlock runs the head-reconciliation protocol. A block either extends
// the chain, replaces the head under the tie-break rule, seeds an empty chain
// as genesis, or is silently discarded. Reports whether the chain changed.
func (bc *BlockChain) AcceptBlock(block *types.Block) bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(bc.storage) == 0 {
		// An empty chain admits exactly a fully-valid genesis block.
		if block.Height == 0 && block.PrevHash == params.GenesisPrevHash && bc.ValidateBlock(block, nil) {
			bc.storage = []*types.Block{block}
			chainHeightGauge.Update(0)
			bc.persist()
			logger.Info("Accepted genesis block", "hash", block.Hash, "miner", block.Miner)
			return true
		}
		discardedBlockCounter.Inc(1)
		return false
	}

	head := bc.storage[len(bc.storage)-1]
	switch {
	case head.Height == block.Height:
		if len(bc.storage) < 2 {
			discardedBlockCounter.Inc(1)
			return false
		}
		prev := bc.storage[len(bc.storage)-2]
		if !headLosesTo(head, block) {
			discardedBlockCounter.Inc(1)
			return false
		}
		if !bc.ValidateBlock(block, prev) {
			return false
		}
		// Push ejected transactions back so they make the next block.
		for _, tx := range head.Data {
			if !blockContains(block, tx) {
				bc.AddTransaction(tx)
				recoveredTxCounter.Inc(1)
			}
		}
		bc.storage[len(bc.storage)-1] = block
		replacedHeadCounter.Inc(1)
		bc.persist()
		logger.Info("Replaced chain head", "height", block.Height, "hash", block.Hash, "miner", block.Miner)
		return true

	case head.Height+1 == block.Height:
		if !bc.ValidateBlock(block, head) {
			return false
		}
		bc.storage = append(bc.storage, block)
		bc.removeFromPool(block)
		extendedBlockCounter.Inc(1)
		chainHeightGauge.Update(int64(block.Height))
		bc.persist()
		logger.Info("Extended chain", "height", block.Height, "hash", block.Hash, "txs", len(block.Data))
		return true

	default:
		// Height gap or stale block; peers re-broadcast on their own schedule.
		discardedBlockCounter.Inc(1)
		logger.Debug("Discarded block", "height", block.Height, "head", head.Height)
		return false
	}
}

// headLosesTo applies the tie-break: the earlier seal wins, and on equal
// timestamps the lexicographically smaller miner id wins.
func headLosesTo(head, block *types.Block) bool {
	ht, herr := head.TimestampSeconds()
	bt, berr := block.TimestampSeconds()
	if herr != nil || berr != nil {
		// Unparseable seals fall back to the raw string ordering.
		if head.Timestamp != block.Timestamp {
			return head.Timestamp > block.Timestamp
		}
		return head.Miner > block.Miner
	}
	if ht != bt {
		return ht > bt
	}
	return head.Miner > block.Miner
}

func blockContains(block *types.Block, tx *types.Transaction) bool {
	for _, member := range block.Data {
		if member.Equal(tx) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the block sequence for peer serving.
func (bc *BlockChain) Snapshot() []*types.Block {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make([]*types.Block, len(bc.storage))
	copy(out, bc.storage)
	return out
}

// PendingPool returns a copy of the pending transactions.
func (bc *BlockChain) PendingPool() []*types.Transaction {
	bc.poolMu.Lock()
	defer bc.poolMu.Unlock()
	out := make([]*types.Transaction, len(bc.pool))
	copy(out, bc.pool)
	return out
}

// persist writes the current storage to the journal. Callers hold mu.
func (bc *BlockChain) persist() {
	if bc.db == nil {
		return
	}
	if err := database.WriteChainSnapshot(bc.db, bc.storage); err != nil {
		logger.Error("Failed to journal chain", "err", err)
	}
}
