// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Wallet connection metrics
	connectAttempts    atomic.Int64
	connectSuccesses   atomic.Int64
	connectUnavailable atomic.Int64
	connectRejected    atomic.Int64
	connectWrongChain  atomic.Int64
	connectOtherErrors atomic.Int64

	// Network checks performed by GetProviderOrSigner
	networkChecks atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records an RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordConnect records the outcome of a wallet connection attempt,
// classified by the wallet error taxonomy.
func (m *Metrics) RecordConnect(err error) {
	m.connectAttempts.Add(1)

	switch {
	case err == nil:
		m.connectSuccesses.Add(1)
	case errors.Is(err, mnserr.ErrExtensionUnavailable):
		m.connectUnavailable.Add(1)
	case errors.Is(err, mnserr.ErrUserRejected):
		m.connectRejected.Add(1)
	case errors.Is(err, mnserr.ErrWrongNetwork):
		m.connectWrongChain.Add(1)
	default:
		m.connectOtherErrors.Add(1)
	}
}

// RecordNetworkCheck records one chain id comparison.
func (m *Metrics) RecordNetworkCheck() {
	m.networkChecks.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal      int64 `json:"rpc_calls_total"`
	RPCErrorsTotal     int64 `json:"rpc_errors_total"`
	RPCLatencyNanos    int64 `json:"rpc_latency_nanos"`
	ConnectAttempts    int64 `json:"connect_attempts"`
	ConnectSuccesses   int64 `json:"connect_successes"`
	ConnectUnavailable int64 `json:"connect_unavailable"`
	ConnectRejected    int64 `json:"connect_rejected"`
	ConnectWrongChain  int64 `json:"connect_wrong_network"`
	ConnectOtherErrors int64 `json:"connect_other_errors"`
	NetworkChecks      int64 `json:"network_checks"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:      m.rpcCallsTotal.Load(),
		RPCErrorsTotal:     m.rpcErrorsTotal.Load(),
		RPCLatencyNanos:    m.rpcLatencyNanos.Load(),
		ConnectAttempts:    m.connectAttempts.Load(),
		ConnectSuccesses:   m.connectSuccesses.Load(),
		ConnectUnavailable: m.connectUnavailable.Load(),
		ConnectRejected:    m.connectRejected.Load(),
		ConnectWrongChain:  m.connectWrongChain.Load(),
		ConnectOtherErrors: m.connectOtherErrors.Load(),
		NetworkChecks:      m.networkChecks.Load(),
	}
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.connectAttempts.Store(0)
	m.connectSuccesses.Store(0)
	m.connectUnavailable.Store(0)
	m.connectRejected.Store(0)
	m.connectWrongChain.Store(0)
	m.connectOtherErrors.Store(0)
	m.networkChecks.Store(0)
}
