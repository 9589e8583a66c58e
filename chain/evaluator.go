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

package chain

import (
	"context"
	"time"

	"github.com/superkkt/go-logging"

	"github.com/superkkt/midonet-sim/match"
	"github.com/superkkt/midonet-sim/topology"
)

var logger = logging.MustGetLogger("chain")

// Outcome is the terminal verdict of evaluating a chain.
type Outcome uint8

const (
	OutcomeAccept Outcome = iota
	OutcomeDrop
	OutcomeReject
	OutcomeError
)

// Result is what Apply returns: a terminal outcome for the *top-level*
// call. JUMP/RETURN/CONTINUE are resolved internally and never escape.
type Result struct {
	Outcome Outcome
	// Trace is a human-readable reason, populated on OutcomeError.
	Trace string
}

// internalOutcome distinguishes an explicit RETURN (resumes the caller at
// the next rule) from an explicit ACCEPT (terminates evaluation outright)
// -- a distinction Result collapses away for external callers.
type internalOutcome uint8

const (
	internalAccept internalOutcome = iota
	internalDrop
	internalReject
	internalReturned
	internalError
)

type internalResult struct {
	outcome internalOutcome
	trace   string
}

func toResult(r internalResult) Result {
	switch r.outcome {
	case internalDrop:
		return Result{Outcome: OutcomeDrop}
	case internalReject:
		return Result{Outcome: OutcomeReject}
	case internalError:
		return Result{Outcome: OutcomeError, Trace: r.trace}
	default:
		// internalReturned falls through to the default-accept rule for
		// filter chains at the top level, same as running off the end.
		return Result{Outcome: OutcomeAccept}
	}
}

// ChainFetcher is the subset of topology.Cache the evaluator needs to
// resolve jump targets.
type ChainFetcher interface {
	FetchChain(ctx context.Context, id string, deadline time.Time) (*topology.Chain, bool, error)
}

// Evaluator applies rule chains to a match, per spec §4.3.
type Evaluator struct {
	// MaxJumpDepth bounds recursive JUMP evaluation; exceeding it yields
	// OutcomeError ("jump depth overflow").
	MaxJumpDepth int
}

// Apply evaluates c against m (mutating m in place for NAT transforms) and
// returns the terminal outcome. ownerID and isPortFilter are carried only
// for tracing; the default when a chain exhausts without a terminal
// action is Accept, matching a filter chain's default per spec §4.3.
func (e Evaluator) Apply(ctx context.Context, cache ChainFetcher, c *topology.Chain, m *match.Match, ownerID string, isPortFilter bool, deadline time.Time) Result {
	return toResult(e.apply(ctx, cache, c, m, ownerID, isPortFilter, deadline, 0))
}

func (e Evaluator) apply(ctx context.Context, cache ChainFetcher, c *topology.Chain, m *match.Match, ownerID string, isPortFilter bool, deadline time.Time, depth int) internalResult {
	if depth > e.maxJumpDepth() {
		logger.Warningf("jump depth overflow evaluating chain for owner=%v", ownerID)
		return internalResult{outcome: internalError, trace: "jump depth overflow"}
	}

	for _, rule := range c.Rules {
		if !rule.Condition(m) {
			continue
		}

		// NAT applies as soon as the rule matches, before its action is
		// dispatched, per spec §4.3 -- every branch below either returns
		// or continues, so this can't be applied after the switch.
		if rule.NAT != nil {
			rule.NAT.Apply(m)
		}

		switch rule.Action {
		case Accept:
			return internalResult{outcome: internalAccept}
		case Drop:
			return internalResult{outcome: internalDrop}
		case Reject:
			return internalResult{outcome: internalReject}
		case Return:
			return internalResult{outcome: internalReturned}
		case Continue:
			continue
		case Jump:
			target, ok, err := cache.FetchChain(ctx, rule.JumpChainID, deadline)
			if err != nil || !ok {
				logger.Warningf("missing jump target chain %v referenced by owner=%v", rule.JumpChainID, ownerID)
				return internalResult{outcome: internalError, trace: "missing jump target chain"}
			}
			sub := e.apply(ctx, cache, target, m, ownerID, isPortFilter, deadline, depth+1)
			switch sub.outcome {
			case internalReturned:
				// RETURN from the target resumes the caller at the next rule.
				continue
			default:
				// ACCEPT/DROP/REJECT/ERROR from the jumped-to chain
				// terminate evaluation outright.
				return sub
			}
		}
	}

	return internalResult{outcome: internalAccept}
}

func (e Evaluator) maxJumpDepth() int {
	if e.MaxJumpDepth <= 0 {
		return 16
	}
	return e.MaxJumpDepth
}
