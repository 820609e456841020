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

// Package log provides module-scoped structured loggers. Every package grabs
// its own logger once:
//
//	var logger = log.NewModuleLogger(log.Blockchain)
//
// and emits log15-style key/value pairs: logger.Info("msg", "key", value).
package log

// ModuleID indicates which module the log message comes from.
type ModuleID int

const (
	BaseLogger ModuleID = iota
	Blockchain
	BlockchainTypes
	Crypto
	Node
	StorageDatabase
	CMDVLN
)

var moduleNames = [...]string{
	BaseLogger:      "base",
	Blockchain:      "blockchain",
	BlockchainTypes: "blockchain.types",
	Crypto:          "crypto",
	Node:            "node",
	StorageDatabase: "storage.database",
	CMDVLN:          "cmd.vln",
}

func (m ModuleID) String() string {
	if int(m) < len(moduleNames) {
		return moduleNames[m]
	}
	return "unknown"
}

// Logger is the voteledger logging interface. Trace maps onto the backend's
// debug level; Crit logs and exits the process.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	// NewWith returns a child logger with the given key/value context
	// attached to every message.
	NewWith(ctx ...interface{}) Logger
}

// NewModuleLogger returns the logger for the given module.
func NewModuleLogger(mi ModuleID) Logger {
	return baseLogger.instance(mi)
}
