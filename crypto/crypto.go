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

// Package crypto implements the ledger's signature scheme: RSA-PKCS#1-v1.5
// over SHA-256, with PEM-encoded public keys on the wire.
package crypto

import (
	gocrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	"github.com/pkg/errors"
)

var (
	ErrNotRSAPublicKey = errors.New("decoded key is not an RSA public key")
	ErrNoPEMBlock      = errors.New("no PEM block found in key material")
)

// pubKeyPad is appended to the PEM bytes before base64 encoding. It is not a
// cryptographic requirement but an on-wire convention inherited from the first
// deployment. DecodePublicKey accepts keys with or without it.
const pubKeyPad = "=="

// Sign returns the PKCS#1 v1.5 signature of SHA-256(data).
func Sign(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, key, gocrypto.SHA256, digest[:])
}

// Verify checks a PKCS#1 v1.5 signature over SHA-256(data).
func Verify(pub *rsa.PublicKey, data, sig []byte) error {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, gocrypto.SHA256, digest[:], sig)
}

// GenerateKey creates a fresh RSA keypair of the given modulus size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePublicKey renders a public key into its wire form: base64 of the
// PKIX PEM encoding with the pad convention appended.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errors.Wrap(err, "marshal public key")
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(append(pemBytes, pubKeyPad...)), nil
}

// DecodePublicKey parses a wire-form public key. The trailing pad bytes fall
// outside the PEM block and are ignored by the decoder.
func DecodePublicKey(enc string) (*rsa.PublicKey, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode public key")
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAPublicKey
	}
	return pub, nil
}
