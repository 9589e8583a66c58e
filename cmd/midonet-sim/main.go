/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/cache"
	"github.com/superkkt/midonet-sim/chain"
	"github.com/superkkt/midonet-sim/config"
	"github.com/superkkt/midonet-sim/coordinator"
	"github.com/superkkt/midonet-sim/device"
	"github.com/superkkt/midonet-sim/log"
	"github.com/superkkt/midonet-sim/topology"
)

const (
	programName     = "midonet-sim"
	programVersion  = "0.1.0"
	defaultLogLevel = logging.INFO
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the tunables configuration file")
	logLevel          = flag.String("log-level", "info", "log level: debug, info, notice, warning, error")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	if err := initLog(getLogLevel(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init log: %v\n", err)
		os.Exit(1)
	}

	store, err := config.NewStore(*defaultConfigFile)
	if err != nil {
		logger.Fatalf("failed to load tunables: %v", err)
	}

	coord := newCoordinator(store)

	ctx, cancel := context.WithCancel(context.Background())
	go runGeneratedPacketLoop(ctx, coord)
	initSignalHandler(cancel)

	logger.Infof("%v is running", programName)
	<-ctx.Done()
	logger.Warning("shutting down...")
}

// newCoordinator wires the topology cache, device dispatcher, port
// filter and connection-tracking cache into one Coordinator, the same
// shape the teacher's main wires a network.Controller out of its
// database and northbound manager.
func newCoordinator(store *config.Store) *coordinator.Coordinator {
	topo := topology.NewMemCache()

	return &coordinator.Coordinator{
		Cache: topo,
		Devices: device.Dispatcher{
			Bridge: &device.Bridge{MAC: cache.NewMACTable()},
			Router: &device.Router{ARP: cache.NewARPCache()},
		},
		Filter:    device.PortFilter{Evaluator: chain.Evaluator{MaxJumpDepth: store.Get().MaxJumpDepth}},
		ConnCache: cache.NewConnCache(time.Minute),
		Config:    store.Get(),
	}
}

// runGeneratedPacketLoop drains the queue Coordinator.Emit fills and
// redrives each entry through its own Simulate call, satisfying the
// non-reentrancy rule that a generated packet is never simulated
// inline with the simulation that produced it.
func runGeneratedPacketLoop(ctx context.Context, coord *coordinator.Coordinator) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pkt := range coord.Pending() {
				port := pkt.EgressPortID
				result, err := coord.Simulate(ctx, coordinator.Input{
					Match:               pkt.Match,
					GeneratedEgressPort: &port,
				})
				if err != nil {
					logger.Errorf("simulating generated packet to port %v: %v", port, err)
					continue
				}
				logger.Debugf("generated packet to port %v produced %v", port, result.Kind)
			}
		}
	}
}

func initSignalHandler(cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c)

		for s := range c {
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				cancel()
				time.Sleep(5 * time.Second)
				os.Exit(0)
			}
		}
	}()
}

func initLog(level logging.Level) error {
	backend, err := log.NewSyslog(toSyslogLevel(level))
	if err != nil {
		return err
	}
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(`%{level}: %{shortpkg}.%{shortfunc}: %{message}`))

	loggerLeveled = logging.AddModuleLevel(formatted)
	loggerLeveled.SetLevel(level, "")
	logging.SetBackend(loggerLeveled)

	return nil
}

// toSyslogLevel maps the go-logging level used for module filtering to
// the coarser level the syslog backend itself gates on.
func toSyslogLevel(level logging.Level) log.Level {
	switch level {
	case logging.DEBUG:
		return log.Debug
	case logging.NOTICE:
		return log.Notice
	case logging.WARNING:
		return log.Warning
	case logging.ERROR, logging.CRITICAL:
		return log.Error
	default:
		return log.Info
	}
}

func getLogLevel(level string) logging.Level {
	ret, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, defaultLogLevel)
		return defaultLogLevel
	}
	return ret
}
