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

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"math/big"
	"os"

	"github.com/pkg/errors"

	"github.com/voteledger/voteledger/log"
)

var logger = log.NewModuleLogger(log.Crypto)

// LoadOrCreateKey reads an RSA private key from path, generating and
// persisting a new one on first run. The boolean reports whether a key was
// created.
func LoadOrCreateKey(path string, bits int) (*rsa.PrivateKey, bool, error) {
	if raw, err := ioutil.ReadFile(path); err == nil {
		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, false, errors.Errorf("no PEM block in %s", path)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, false, errors.Wrapf(err, "parse private key %s", path)
		}
		logger.Info("Loaded private key", "path", path)
		return key, false, nil
	} else if !os.IsNotExist(err) {
		return nil, false, err
	}

	logger.Info("Creating private key", "path", path, "bits", bits)
	key, err := GenerateKey(bits)
	if err != nil {
		return nil, false, errors.Wrap(err, "generate private key")
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := ioutil.WriteFile(path, pemBytes, 0600); err != nil {
		return nil, false, errors.Wrapf(err, "write private key %s", path)
	}
	return key, true, nil
}

// LoadOrCreateMinerID reads the node's miner id from path, drawing and
// persisting a random decimal id on first run.
func LoadOrCreateMinerID(path string, space int64) (string, error) {
	if raw, err := ioutil.ReadFile(path); err == nil {
		return string(raw), nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(space))
	if err != nil {
		return "", errors.Wrap(err, "draw miner id")
	}
	id := n.String()
	logger.Info("Creating miner id", "path", path, "id", id)
	if err := ioutil.WriteFile(path, []byte(id), 0644); err != nil {
		return "", errors.Wrapf(err, "write miner id %s", path)
	}
	return id, nil
}
