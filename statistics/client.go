package statistics

import (
	"time"

	"github.com/baiyanhuang/hnet/statistics/metrics"
)

var (
	clientCloseChan chan struct{}

	// ClientReg collects session counters when enabled.
	ClientReg *metrics.Registry

	EnableClient = false
)

func InitClient() {
	clientCloseChan = make(chan struct{})
	ClientReg = metrics.NewRegistry()
}

func RunClient() {
	if EnableClient {
		metrics.LogRoutine("Client", ClientReg, 10*time.Second, clientCloseChan)
	}
}

func CloseClient() {
	close(clientCloseChan)
	ClientReg.UnregisterAll()
	ClientReg = nil
}

// Count bumps a client counter; a nop until InitClient runs.
func Count(name string) {
	if r := ClientReg; r != nil {
		r.GetOrRegisterCounter(name).Inc(1)
	}
}

// GaugeMax raises a client high-water gauge; a nop until InitClient runs.
func GaugeMax(name string, v int64) {
	if r := ClientReg; r != nil {
		r.GetOrRegisterGauge(name).Max(v)
	}
}
