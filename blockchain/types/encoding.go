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
	"encoding/json"
	"strconv"
)

// The canonical serialisation feeds both hashes and signatures, so its byte
// format is an on-the-wire contract: fields are emitted in declaration order
// with ", " between members and ": " after each key. Changing a single byte
// here forks the network.

// encodeJSONString appends the JSON encoding of s to buf.
func encodeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode always terminates the value with a newline; drop it.
	if err := enc.Encode(s); err != nil {
		// A plain string cannot fail to encode.
		panic(err)
	}
	buf.Truncate(buf.Len() - 1)
}

// encodeString returns the JSON encoding of s.
func encodeString(s string) []byte {
	var buf bytes.Buffer
	encodeJSONString(&buf, s)
	return buf.Bytes()
}

// hashImage builds the canonical pre-hash serialisation of a block: the hash
// field held empty, the timestamp absent, and data items in order.
func hashImage(miner, prevHash string, height, nonce uint64, items [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"miner": `)
	encodeJSONString(&buf, miner)
	buf.WriteString(`, "hash": "", "prevHash": `)
	encodeJSONString(&buf, prevHash)
	buf.WriteString(`, "height": `)
	buf.WriteString(strconv.FormatUint(height, 10))
	buf.WriteString(`, "nonce": `)
	buf.WriteString(strconv.FormatUint(nonce, 10))
	buf.WriteString(`, "data": [`)
	for i, item := range items {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.Write(item)
	}
	buf.WriteString("]}")
	return buf.Bytes()
}
