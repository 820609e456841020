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

package node

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/voteledger/voteledger/blockchain/types"
)

var (
	propagatedTxCounter    = metrics.NewRegisteredCounter("node/gossip/tx", nil)
	propagatedBlockCounter = metrics.NewRegisteredCounter("node/gossip/block", nil)
	peerErrorCounter       = metrics.NewRegisteredCounter("node/gossip/peererror", nil)
)

// requestList fetches a peer's participant roster.
func (n *Node) requestList(addr string) ([]Participant, int, error) {
	resp, err := n.client.Get("http://" + addr + "/list")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	var list []Participant
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "decode roster")
	}
	return list, resp.StatusCode, nil
}

// requestChain fetches a peer's full chain snapshot.
func (n *Node) requestChain(addr string) ([]*types.Block, error) {
	resp, err := n.client.Get("http://" + addr + "/blockchain")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("chain fetch from %s: status %d", addr, resp.StatusCode)
	}
	var blocks []*types.Block
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		return nil, errors.Wrap(err, "decode chain snapshot")
	}
	return blocks, nil
}

// postJSON posts a JSON payload to a peer endpoint and returns the status.
func (n *Node) postJSON(addr, path string, payload interface{}) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	resp, err := n.client.Post("http://"+addr+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// PropagateTransaction sends a signed transaction to every other peer.
// Individual peer failures are ignored; peers are never retried.
func (n *Node) PropagateTransaction(tx *types.Transaction) {
	for _, peer := range n.Participants() {
		if peer.Address == n.config.Address {
			continue
		}
		if _, err := n.postJSON(peer.Address, "/update_pool", tx); err != nil {
			peerErrorCounter.Inc(1)
			logger.Debug("Failed to send transaction", "peer", peer.Address, "err", err)
			continue
		}
		propagatedTxCounter.Inc(1)
	}
}

// PropagateBlock sends a block to every other peer after local acceptance.
func (n *Node) PropagateBlock(block *types.Block) {
	for _, peer := range n.Participants() {
		if peer.Address == n.config.Address {
			continue
		}
		if _, err := n.postJSON(peer.Address, "/add_new_block", block); err != nil {
			peerErrorCounter.Inc(1)
			logger.Debug("Failed to send block", "peer", peer.Address, "err", err)
			continue
		}
		propagatedBlockCounter.Inc(1)
	}
}
