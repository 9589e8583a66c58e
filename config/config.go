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

// Package config loads the coordinator's tunable budgets the same way
// cmd/cherry loads its controller settings: viper, with fsnotify
// hot-reload so an operator can retune without restarting the agent.
package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/superkkt/go-logging"
	"github.com/superkkt/viper"
)

var logger = logging.MustGetLogger("config")

// Tunables are the budgets named in spec §6, all retunable live.
type Tunables struct {
	MaxDevicesTraversed       int
	LoopVisitThreshold        int
	MaxJumpDepth              int
	TemporaryDropMillis       uint64
	IdleExpirationMillis      uint64
	ReturnFlowExpirationMillis uint64
	MinVNI                    uint32
	MaxVNI                    uint32
}

// Defaults match spec §6's historical values.
func Defaults() Tunables {
	return Tunables{
		MaxDevicesTraversed:        12,
		LoopVisitThreshold:         2,
		MaxJumpDepth:               16,
		TemporaryDropMillis:        5000,
		IdleExpirationMillis:       60000,
		ReturnFlowExpirationMillis: 60000,
		MinVNI:                     10000,
		MaxVNI:                     0x00FFFFFF,
	}
}

// Store holds the live Tunables behind a mutex and refreshes them when
// the backing file changes, mirroring cmd/cherry/main.go's initConfig.
type Store struct {
	mu    sync.RWMutex
	v     *viper.Viper
	cur   Tunables
}

// NewStore reads path (if non-empty) on top of Defaults() and watches it
// for changes. An empty path is not an error: defaults apply. A
// non-empty path whose file cannot be read is an error.
func NewStore(path string) (*Store, error) {
	s := &Store{cur: Defaults(), v: viper.New()}

	if path == "" {
		return s, nil
	}

	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "reading tunables config")
	}
	s.reload()
	s.v.WatchConfig()
	s.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infof("tunables config changed: %v", e.Name)
		s.reload()
	})

	return s, nil
}

func (s *Store) reload() {
	t := Defaults()
	if s.v.IsSet("max_devices_traversed") {
		t.MaxDevicesTraversed = s.v.GetInt("max_devices_traversed")
	}
	if s.v.IsSet("loop_visit_threshold") {
		t.LoopVisitThreshold = s.v.GetInt("loop_visit_threshold")
	}
	if s.v.IsSet("max_jump_depth") {
		t.MaxJumpDepth = s.v.GetInt("max_jump_depth")
	}
	if s.v.IsSet("temporary_drop_millis") {
		t.TemporaryDropMillis = uint64(s.v.GetInt64("temporary_drop_millis"))
	}
	if s.v.IsSet("idle_expiration_millis") {
		t.IdleExpirationMillis = uint64(s.v.GetInt64("idle_expiration_millis"))
	}
	if s.v.IsSet("return_flow_expiration_millis") {
		t.ReturnFlowExpirationMillis = uint64(s.v.GetInt64("return_flow_expiration_millis"))
	}
	if s.v.IsSet("min_vni") {
		t.MinVNI = uint32(s.v.GetInt("min_vni"))
	}
	if s.v.IsSet("max_vni") {
		t.MaxVNI = uint32(s.v.GetInt("max_vni"))
	}

	s.mu.Lock()
	s.cur = t
	s.mu.Unlock()
}

// Get returns the current snapshot of tunables.
func (s *Store) Get() Tunables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Millis is a tiny helper so call sites can express expirations as
// time.Duration without every package importing time math twice.
func Millis(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
