package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

func TestMetrics_RecordRPCCall(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordRPCCall(100*time.Millisecond, nil)
	m.RecordRPCCall(50*time.Millisecond, mnserr.ErrNetworkError)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.RPCCallsTotal)
	assert.Equal(t, int64(1), snap.RPCErrorsTotal)
	assert.InDelta(t, 75.0, m.RPCLatencyAvgMs(), 0.001)
}

func TestMetrics_RPCLatencyAvg_NoCalls(t *testing.T) {
	t.Parallel()
	m := &Metrics{}
	assert.InDelta(t, 0.0, m.RPCLatencyAvgMs(), 0.001)
}

func TestMetrics_RecordConnect(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordConnect(nil)
	m.RecordConnect(mnserr.WithCause(mnserr.ErrExtensionUnavailable, errors.New("dial tcp: refused")))
	m.RecordConnect(mnserr.ErrUserRejected)
	m.RecordConnect(mnserr.Wrap(mnserr.ErrWrongNetwork, "checking network"))
	m.RecordConnect(errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, int64(5), snap.ConnectAttempts)
	assert.Equal(t, int64(1), snap.ConnectSuccesses)
	assert.Equal(t, int64(1), snap.ConnectUnavailable)
	assert.Equal(t, int64(1), snap.ConnectRejected)
	assert.Equal(t, int64(1), snap.ConnectWrongChain)
	assert.Equal(t, int64(1), snap.ConnectOtherErrors)
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRPCCall(time.Millisecond, nil)
			m.RecordNetworkCheck()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.RPCCallsTotal)
	assert.Equal(t, int64(50), snap.NetworkChecks)
}

func TestMetrics_Reset(t *testing.T) {
	t.Parallel()
	m := &Metrics{}
	m.RecordConnect(nil)
	m.RecordRPCCall(time.Second, nil)

	m.Reset()

	assert.Equal(t, Snapshot{}, m.Snapshot())
}
