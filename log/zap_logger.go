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

package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// atomicLevel is shared by every module logger so ChangeGlobalLogLevel
	// takes effect process-wide.
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	baseLogger = newZapBase()
)

type zapBase struct {
	mu      sync.Mutex
	root    *zap.SugaredLogger
	loggers map[ModuleID]Logger
}

func newZapBase() *zapBase {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), atomicLevel)
	return &zapBase{
		root:    zap.New(core).Sugar(),
		loggers: make(map[ModuleID]Logger),
	}
}

func (b *zapBase) instance(mi ModuleID) Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lg, ok := b.loggers[mi]; ok {
		return lg
	}
	lg := &zapLogger{sl: b.root.With("module", mi.String())}
	b.loggers[mi] = lg
	return lg
}

// ChangeGlobalLogLevel sets the verbosity for all module loggers.
// Accepted levels: "debug", "info", "warn", "error".
func ChangeGlobalLogLevel(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	atomicLevel.SetLevel(lvl)
	return nil
}

type zapLogger struct {
	sl *zap.SugaredLogger
}

func (l *zapLogger) Trace(msg string, ctx ...interface{}) { l.sl.Debugw(msg, ctx...) }
func (l *zapLogger) Debug(msg string, ctx ...interface{}) { l.sl.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...interface{})  { l.sl.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...interface{})  { l.sl.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...interface{}) { l.sl.Errorw(msg, ctx...) }
func (l *zapLogger) Crit(msg string, ctx ...interface{})  { l.sl.Fatalw(msg, ctx...) }

func (l *zapLogger) NewWith(ctx ...interface{}) Logger {
	return &zapLogger{sl: l.sl.With(ctx...)}
}
