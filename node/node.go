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

// Package node runs one ledger peer: identity, the participant roster,
// bootstrap, gossip, the deferred mining job and the request handlers the
// transport dispatches into.
package node

import (
	"crypto/rsa"
	"math/rand"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"gopkg.in/fatih/set.v0"

	"github.com/voteledger/voteledger/blockchain"
	"github.com/voteledger/voteledger/blockchain/types"
	"github.com/voteledger/voteledger/crypto"
	"github.com/voteledger/voteledger/log"
	"github.com/voteledger/voteledger/params"
	"github.com/voteledger/voteledger/storage/database"
)

var logger = log.NewModuleLogger(log.Node)

var (
	ErrAlreadyVoted     = errors.New("node has already cast its vote")
	ErrUnknownCandidate = errors.New("unknown candidate address")
)

const (
	minerIDFile    = "miner_id.txt"
	privateKeyFile = "private_key.pem"

	// Sizes for the duplicate-delivery caches on the inbound handlers.
	recentBlocksCacheSize = 1024
	recentTxsCacheSize    = 4096

	// chainSyncRetryInterval paces the bootstrap sync loop between failed
	// snapshot fetches.
	chainSyncRetryInterval = 500 * time.Millisecond
)

// Config are the run parameters of a peer node.
type Config struct {
	Address       string // host:port of this node's transport
	MasterAddress string // well-known bootstrap peer
	DataDir       string // identity files and the chain journal live here
	KeyBits       int    // RSA modulus size for a fresh keypair
	Candidates    []params.Candidate
}

// sanitize fills in unset configuration values.
func (config *Config) sanitize() Config {
	conf := *config
	if conf.MasterAddress == "" {
		conf.MasterAddress = params.DefaultMasterAddress
	}
	if conf.DataDir == "" {
		conf.DataDir = "."
	}
	if conf.KeyBits == 0 {
		conf.KeyBits = params.DefaultKeyBits
	}
	if len(conf.Candidates) == 0 {
		conf.Candidates = params.DefaultCandidates
	}
	return conf
}

// Participant is one roster entry.
type Participant struct {
	MinerID string `json:"miner_id"`
	Address string `json:"address"`
}

// Node is a single ledger peer. It lives from process start to process exit.
type Node struct {
	config     Config
	minerID    string
	privateKey *rsa.PrivateKey
	chain      *blockchain.BlockChain

	rosterMu   sync.Mutex
	roster     []Participant
	rosterKeys *set.Set

	client *http.Client

	recentBlocks *lru.ARCCache
	recentTxs    *lru.ARCCache

	mineMu      sync.Mutex
	minePending bool
	mineTimer   *time.Timer

	httpSrv *http.Server
}

// New loads (or creates) the node identity and assembles an unstarted node.
func New(config Config, db database.Database) (*Node, error) {
	conf := config.sanitize()

	key, _, err := crypto.LoadOrCreateKey(filepath.Join(conf.DataDir, privateKeyFile), conf.KeyBits)
	if err != nil {
		return nil, err
	}
	minerID, err := crypto.LoadOrCreateMinerID(filepath.Join(conf.DataDir, minerIDFile), params.MinerIDSpace)
	if err != nil {
		return nil, err
	}

	recentBlocks, err := lru.NewARC(recentBlocksCacheSize)
	if err != nil {
		return nil, err
	}
	recentTxs, err := lru.NewARC(recentTxsCacheSize)
	if err != nil {
		return nil, err
	}

	return &Node{
		config:       conf,
		minerID:      minerID,
		privateKey:   key,
		chain:        blockchain.NewBlockChain(db),
		rosterKeys:   set.New(),
		client:       &http.Client{},
		recentBlocks: recentBlocks,
		recentTxs:    recentTxs,
	}, nil
}

// MinerID returns the node's stable identifier.
func (n *Node) MinerID() string { return n.minerID }

// Address returns the host:port this node serves on.
func (n *Node) Address() string { return n.config.Address }

// Chain returns the node's ledger.
func (n *Node) Chain() *blockchain.BlockChain { return n.chain }

// Start runs the bootstrap sequence and brings up the HTTP transport.
func (n *Node) Start() error {
	logger.Info("Starting node", "miner", n.minerID, "addr", n.config.Address)
	n.fetchParticipantList()
	n.advertise()
	if err := n.syncChain(); err != nil {
		return err
	}
	return n.startHTTP()
}

// Stop tears the node down: the transport stops accepting requests and a
// pending mining job is cancelled.
func (n *Node) Stop() {
	n.mineMu.Lock()
	if n.mineTimer != nil {
		n.mineTimer.Stop()
	}
	n.minePending = false
	n.mineMu.Unlock()

	if n.httpSrv != nil {
		if err := n.httpSrv.Close(); err != nil {
			logger.Error("Failed to close transport", "err", err)
		}
	}
	logger.Info("Node stopped", "miner", n.minerID)
}

// Participants returns a copy of the roster.
func (n *Node) Participants() []Participant {
	n.rosterMu.Lock()
	defer n.rosterMu.Unlock()
	out := make([]Participant, len(n.roster))
	copy(out, n.roster)
	return out
}

// addParticipant appends a roster entry unless already present.
func (n *Node) addParticipant(p Participant) bool {
	key := p.MinerID + "@" + p.Address
	n.rosterMu.Lock()
	defer n.rosterMu.Unlock()
	if n.rosterKeys.Has(key) {
		return false
	}
	n.rosterKeys.Add(key)
	n.roster = append(n.roster, p)
	return true
}

// setRoster replaces the roster wholesale with a peer's view.
func (n *Node) setRoster(list []Participant) {
	n.rosterMu.Lock()
	defer n.rosterMu.Unlock()
	n.roster = list
	n.rosterKeys.Clear()
	for _, p := range list {
		n.rosterKeys.Add(p.MinerID + "@" + p.Address)
	}
}

// removeParticipantAt drops the roster entry at index i.
func (n *Node) removeParticipantAt(i int) {
	n.rosterMu.Lock()
	defer n.rosterMu.Unlock()
	if i < 0 || i >= len(n.roster) {
		return
	}
	p := n.roster[i]
	n.rosterKeys.Remove(p.MinerID + "@" + p.Address)
	n.roster = append(n.roster[:i], n.roster[i+1:]...)
}

// fetchParticipantList adopts a roster during bootstrap. The master seeds its
// own roster; everyone else asks the master first and live peers afterwards.
func (n *Node) fetchParticipantList() {
	if n.config.Address == n.config.MasterAddress {
		logger.Info("Assuming this node as master")
		return
	}
	if len(n.Participants()) == 0 {
		list, _, err := n.requestList(n.config.MasterAddress)
		if err != nil {
			logger.Error("Could not fetch roster from master", "master", n.config.MasterAddress, "err", err)
			return
		}
		n.setRoster(list)
		return
	}
	n.refreshParticipantList()
}

// refreshParticipantList re-adopts the roster from a random live peer,
// dropping peers that time out or refuse the connection. Once the roster
// drains, the node falls back to asking the master once and adopts its list
// on a 200 answer.
func (n *Node) refreshParticipantList() {
	for {
		participants := n.Participants()
		if len(participants) == 0 {
			logger.Warn("Roster drained, falling back to master")
			list, status, err := n.requestList(n.config.MasterAddress)
			if err != nil || status != http.StatusOK {
				logger.Error("Could not fetch roster from master", "master", n.config.MasterAddress, "status", status, "err", err)
				return
			}
			n.setRoster(list)
			return
		}
		i := rand.Intn(len(participants))
		list, status, err := n.requestList(participants[i].Address)
		switch {
		case err != nil || status == http.StatusRequestTimeout:
			logger.Warn("Dropping unresponsive peer", "peer", participants[i].Address, "status", status, "err", err)
			n.removeParticipantAt(i)
		case status == http.StatusOK:
			n.setRoster(list)
			return
		default:
			logger.Error("Unexpected roster response, aborting refresh", "peer", participants[i].Address, "status", status)
			return
		}
	}
}

// advertise announces this node to every known peer and appends itself to its
// own roster.
func (n *Node) advertise() {
	self := Participant{MinerID: n.minerID, Address: n.config.Address}
	for _, peer := range n.Participants() {
		if peer.Address == n.config.Address {
			continue
		}
		if _, err := n.postJSON(peer.Address, "/advertise", self); err != nil {
			logger.Error("Failed to advertise", "peer", peer.Address, "err", err)
		}
	}
	n.addParticipant(self)
}

// syncChain brings the local chain up: the sole participant mines genesis,
// everyone else adopts a random peer's snapshot.
func (n *Node) syncChain() error {
	for n.chain.Empty() {
		participants := n.Participants()
		if len(participants) > 1 {
			i := rand.Intn(len(participants))
			if participants[i].Address == n.config.Address {
				continue
			}
			blocks, err := n.requestChain(participants[i].Address)
			if err != nil {
				logger.Debug("Chain sync attempt failed", "peer", participants[i].Address, "err", err)
				time.Sleep(chainSyncRetryInterval)
				continue
			}
			n.chain.InstallChain(blocks)
		} else {
			logger.Info("Sole participant, creating genesis")
			if err := n.chain.CreateGenesisBlock(n.privateKey, n.minerID); err != nil {
				return err
			}
		}
	}
	return nil
}

// CastVote submits the operator's single vote: refuse a double vote or an
// unknown candidate, otherwise sign, pool, broadcast and schedule mining.
func (n *Node) CastVote(addrTo string) error {
	if n.chain.HasVoted(n.minerID) {
		return ErrAlreadyVoted
	}
	if !n.isCandidate(addrTo) {
		return ErrUnknownCandidate
	}
	signed, err := types.NewTransaction(n.minerID, addrTo).SignedForm(n.privateKey)
	if err != nil {
		return err
	}
	n.chain.AddTransaction(signed)
	n.PropagateTransaction(signed)
	n.scheduleMining()
	logger.Info("Vote cast", "candidate", addrTo)
	return nil
}

// isCandidate checks addrTo against the configured candidate addresses.
func (n *Node) isCandidate(addrTo string) bool {
	for _, c := range n.config.Candidates {
		if c.Address == addrTo {
			return true
		}
	}
	return false
}

// scheduleMining arms the single-slot mining job. At most one job is pending
// at any time; the slot clears when the job fires.
func (n *Node) scheduleMining() {
	n.mineMu.Lock()
	defer n.mineMu.Unlock()
	if n.minePending {
		return
	}
	n.minePending = true
	n.mineTimer = time.AfterFunc(params.MiningDelay, n.runMiningJob)
	logger.Info("Scheduled mining job", "delay", params.MiningDelay)
}

// runMiningJob clears the scheduler slot, mines the next block off the
// request path and broadcasts the result.
func (n *Node) runMiningJob() {
	n.mineMu.Lock()
	n.minePending = false
	n.mineMu.Unlock()

	block := n.chain.MineNext(n.minerID)
	if block != nil {
		n.PropagateBlock(block)
	}
}
