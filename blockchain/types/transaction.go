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
	"bytes"
	"crypto/rsa"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/voteledger/voteledger/crypto"
)

var ErrInvalidSignature = errors.New("invalid transaction signature")

// Transaction is a single signed vote. Field order mirrors the wire record;
// it is part of the hashed serialisation and must not change.
type Transaction struct {
	AddrFrom  string `json:"addr_from"`
	AddrTo    string `json:"addr_to"`
	Signature string `json:"signature"`
	Pubkey    string `json:"pubkey"`
}

// NewTransaction records the vote endpoints; the signature is set later.
func NewTransaction(from, to string) *Transaction {
	return &Transaction{AddrFrom: from, AddrTo: to}
}

// CanonicalBytes returns the serialisation the signature is computed over:
// just the two endpoints, in order.
func (tx *Transaction) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"addr_from": `)
	encodeJSONString(&buf, tx.AddrFrom)
	buf.WriteString(`, "addr_to": `)
	encodeJSONString(&buf, tx.AddrTo)
	buf.WriteByte('}')
	return buf.Bytes()
}

// WireBytes returns the canonical serialisation of the full signed record,
// as it appears inside a block's data list.
func (tx *Transaction) WireBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"addr_from": `)
	encodeJSONString(&buf, tx.AddrFrom)
	buf.WriteString(`, "addr_to": `)
	encodeJSONString(&buf, tx.AddrTo)
	buf.WriteString(`, "signature": `)
	encodeJSONString(&buf, tx.Signature)
	buf.WriteString(`, "pubkey": `)
	encodeJSONString(&buf, tx.Pubkey)
	buf.WriteByte('}')
	return buf.Bytes()
}

// Sign computes and stores the signature over CanonicalBytes. Idempotent:
// an already-signed transaction keeps its signature.
func (tx *Transaction) Sign(key *rsa.PrivateKey) error {
	if tx.Signature != "" {
		return nil
	}
	sig, err := crypto.Sign(key, tx.CanonicalBytes())
	if err != nil {
		return errors.Wrap(err, "sign transaction")
	}
	tx.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// SignedForm signs the transaction if needed, attaches the signer's public
// key in wire form, and returns the receiver.
func (tx *Transaction) SignedForm(key *rsa.PrivateKey) (*Transaction, error) {
	if err := tx.Sign(key); err != nil {
		return nil, err
	}
	pub, err := crypto.EncodePublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	tx.Pubkey = pub
	return tx, nil
}

// VerifySignature checks the stored signature against the embedded public key
// over the canonical endpoint serialisation.
func (tx *Transaction) VerifySignature() error {
	pub, err := crypto.DecodePublicKey(tx.Pubkey)
	if err != nil {
		return ErrInvalidSignature
	}
	sig, err := base64.StdEncoding.DecodeString(tx.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if err := crypto.Verify(pub, tx.CanonicalBytes(), sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// Equal reports whether two records match field for field.
func (tx *Transaction) Equal(other *Transaction) bool {
	return tx.AddrFrom == other.AddrFrom &&
		tx.AddrTo == other.AddrTo &&
		tx.Signature == other.Signature &&
		tx.Pubkey == other.Pubkey
}

// copyTransactions rebuilds a data list into fresh records, so the block does
// not share them with the caller. Field order in the hashed image comes from
// WireBytes, not from the copy.
func copyTransactions(data []*Transaction) []*Transaction {
	out := make([]*Transaction, len(data))
	for i, tx := range data {
		c := *tx
		out[i] = &c
	}
	return out
}
