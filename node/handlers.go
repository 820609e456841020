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
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/voteledger/voteledger/blockchain/types"
)

var statusOK = map[string]string{"status": "ok"}

// newRouter wires the peer protocol and operator endpoints.
func (n *Node) newRouter() http.Handler {
	router := httprouter.New()
	router.GET("/list", n.handleList)
	router.POST("/advertise", n.handleAdvertise)
	router.GET("/blockchain", n.handleBlockchain)
	router.GET("/pool", n.handlePool)
	router.POST("/update_pool", n.handleUpdatePool)
	router.POST("/add_new_block", n.handleAddNewBlock)
	router.GET("/candidates", n.handleCandidates)
	router.POST("/vote", n.handleVote)
	return cors.Default().Handler(router)
}

// startHTTP binds the transport and serves it in the background.
func (n *Node) startHTTP() error {
	ln, err := net.Listen("tcp", n.config.Address)
	if err != nil {
		return err
	}
	n.httpSrv = &http.Server{Handler: n.newRouter()}
	go func() {
		if err := n.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Transport stopped", "err", err)
		}
	}()
	logger.Info("Transport listening", "addr", n.config.Address)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", "err", err)
	}
}

func (n *Node) handleList(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.Participants())
}

func (n *Node) handleAdvertise(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var peer Participant
	if err := json.NewDecoder(r.Body).Decode(&peer); err != nil {
		if err == io.EOF {
			// Absent payload is a no-op.
			writeJSON(w, http.StatusOK, statusOK)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}
	if n.addParticipant(peer) {
		logger.Info("Peer advertised", "miner", peer.MinerID, "addr", peer.Address)
	}
	writeJSON(w, http.StatusOK, statusOK)
}

func (n *Node) handleBlockchain(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.chain.Snapshot())
}

func (n *Node) handlePool(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.chain.PendingPool())
}

// handleUpdatePool admits one gossiped transaction. Validation failures are
// silent towards the sender.
func (n *Node) handleUpdatePool(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var tx types.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed transaction"})
		return
	}
	if _, seen := n.recentTxs.Get(tx.Signature); seen {
		writeJSON(w, http.StatusOK, statusOK)
		return
	}
	n.recentTxs.Add(tx.Signature, struct{}{})
	n.acceptTransaction(&tx)
	writeJSON(w, http.StatusOK, statusOK)
}

// acceptTransaction is the receive-path admission check: signature, then an
// exact candidate match, then pool admission and a mining job.
func (n *Node) acceptTransaction(tx *types.Transaction) {
	if err := n.chain.ValidateTransaction(tx); err != nil {
		logger.Warn("Dropping transaction with bad signature", "addr_from", tx.AddrFrom)
		return
	}
	if !n.isCandidate(tx.AddrTo) {
		logger.Warn("Dropping transaction for unknown candidate", "addr_to", tx.AddrTo)
		return
	}
	n.chain.AddTransaction(tx)
	n.scheduleMining()
}

// handleAddNewBlock submits one gossiped block to head reconciliation.
func (n *Node) handleAddNewBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var block types.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed block"})
		return
	}
	// Only incorporated blocks are remembered: a block dropped for a missing
	// predecessor must stay eligible for redelivery.
	if _, seen := n.recentBlocks.Get(block.Hash); !seen {
		if n.chain.AcceptBlock(&block) {
			n.recentBlocks.Add(block.Hash, struct{}{})
		}
	}
	writeJSON(w, http.StatusOK, statusOK)
}

func (n *Node) handleCandidates(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, n.config.Candidates)
}

// handleVote is the operator surface: cast this node's single vote.
func (n *Node) handleVote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		AddrTo string `json:"addr_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	switch err := n.CastVote(req.AddrTo); err {
	case nil:
		writeJSON(w, http.StatusOK, statusOK)
	case ErrAlreadyVoted:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case ErrUnknownCandidate:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
