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

package params

import "time"

const (
	// PoWPrefix is the proof-of-work target: a block hash is valid when its
	// lowercase hex digest starts with this prefix (12 leading zero bits).
	PoWPrefix = "000"

	// GenesisPrevHash is the prevHash literal carried by the block at height 0.
	GenesisPrevHash = "Genesis Block"

	// GenesisAddress is the addr_from of the single transaction inside the
	// genesis block.
	GenesisAddress = "Genesis Addr"

	// MiningDelay is how long a node waits after the first transaction
	// admission before assembling and mining a block.
	MiningDelay = 5 * time.Second

	// DefaultKeyBits is the RSA modulus size used when a node creates its
	// keypair on first run. The wire protocol accepts larger keys.
	DefaultKeyBits = 1024

	// MinerIDSpace bounds the random miner id drawn on first run; ids are
	// decimal strings in [0, MinerIDSpace).
	MinerIDSpace = 10000
)

// DefaultMasterAddress is the well-known bootstrap peer. It has no special
// authority after bootstrap.
const DefaultMasterAddress = "localhost:5000"

// Candidate is one valid destination for a vote.
type Candidate struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DefaultCandidates is the reference candidate set.
var DefaultCandidates = []Candidate{
	{Name: "Candidate 1", Address: "12345"},
	{Name: "Candidate 2", Address: "5678"},
	{Name: "Candidate 3", Address: "9999"},
}
