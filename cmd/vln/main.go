// Copyright 2018 The voteledger Authors
// This file is part of vln.
//
// vln is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// vln is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with vln. If not, see <http://www.gnu.org/licenses/>.

// vln is the voteledger peer node.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcrowley/go-metrics"
	"gopkg.in/urfave/cli.v1"

	prometheusmetrics "github.com/voteledger/voteledger/metrics/prometheus"
	"github.com/voteledger/voteledger/log"
	"github.com/voteledger/voteledger/node"
	"github.com/voteledger/voteledger/params"
	"github.com/voteledger/voteledger/storage/database"
)

var logger = log.NewModuleLogger(log.CMDVLN)

var (
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "host:port this node serves its peers on",
		Value: params.DefaultMasterAddress,
	}
	masterFlag = cli.StringFlag{
		Name:  "master",
		Usage: "Address of the well-known bootstrap peer",
		Value: params.DefaultMasterAddress,
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory for the identity files and the chain journal",
		Value: ".",
	}
	keyBitsFlag = cli.IntFlag{
		Name:  "keybits",
		Usage: "RSA modulus size used when creating a fresh keypair",
		Value: params.DefaultKeyBits,
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: debug, info, warn, error",
		Value: "info",
	}
	metricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Enable the prometheus metrics exporter",
	}
	metricsPortFlag = cli.IntFlag{
		Name:  "metricsport",
		Usage: "Port the prometheus exporter listens on",
		Value: 6060,
	}

	nodeFlags = []cli.Flag{
		addrFlag,
		masterFlag,
		dataDirFlag,
		keyBitsFlag,
		verbosityFlag,
		metricsFlag,
		metricsPortFlag,
		configFileFlag,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "vln"
	app.Usage = "the voteledger peer node"
	app.Version = params.Version
	app.Copyright = "Copyright 2018 The voteledger Authors"
	app.Action = runNode
	app.Flags = nodeFlags
	app.Commands = []cli.Command{
		dumpConfigCommand,
		versionCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Before = func(ctx *cli.Context) error {
		if err := log.ChangeGlobalLogLevel(ctx.GlobalString(verbosityFlag.Name)); err != nil {
			return err
		}
		if ctx.GlobalBool(metricsFlag.Name) {
			logger.Info("Enabling metrics collection")
			pClient := prometheusmetrics.NewPrometheusProvider(metrics.DefaultRegistry, "voteledger",
				"", prometheus.DefaultRegisterer, 3*time.Second)
			go pClient.UpdatePrometheusMetrics()
			http.Handle("/metrics", promhttp.Handler())
			port := ctx.GlobalInt(metricsPortFlag.Name)
			go func() {
				if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
					logger.Error("Prometheus exporter failed", "port", port, "err", err)
				}
			}()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	db, err := database.NewLDBDatabase(filepath.Join(cfg.Node.DataDir, "chaindata"))
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := node.New(cfg.Node, db)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	sig := <-sigc
	logger.Info("Got interrupt, shutting down", "signal", sig)
	return nil
}

var versionCommand = cli.Command{
	Action:    printVersion,
	Name:      "version",
	Usage:     "Print version numbers",
	ArgsUsage: " ",
	Category:  "MISCELLANEOUS COMMANDS",
}

func printVersion(ctx *cli.Context) error {
	fmt.Println("vln", params.Version)
	return nil
}
