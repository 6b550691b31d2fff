package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/baiyanhuang/hnet/log"
)

// LogRoutine flushes a registry snapshot to the log every freq until
// closeChan closes.
func LogRoutine(title string, r *Registry, freq time.Duration, closeChan chan struct{}) {
	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()
		for {
			select {
			case _, ok := <-closeChan:
				if !ok {
					return
				}
			case <-ticker.C:
				if msg := format(title, r); msg != "" {
					log.Info(msg)
				}
			}
		}
	}()
}

func format(title string, r *Registry) string {
	counterList := make([]string, 0)
	gaugeList := make([]string, 0)

	r.Each(func(name string, metric any) {
		switch m := metric.(type) {
		case *Counter:
			if n := m.Count(); n != 0 {
				counterList = append(counterList, fmt.Sprintf("%s: %d", name, n))
			}
		case *Gauge:
			if v := m.Value(); v != 0 {
				gaugeList = append(gaugeList, fmt.Sprintf("%s: %d", name, v))
			}
		}
	})

	sb := strings.Builder{}
	if len(counterList) > 0 {
		sb.WriteString(fmt.Sprintf("counter(%v):{", len(counterList)))
		sort.Strings(counterList)
		for _, v := range counterList {
			sb.WriteString("[")
			sb.WriteString(v)
			sb.WriteString("],")
		}
		sb.WriteString("}, ")
	}
	if len(gaugeList) > 0 {
		sb.WriteString(fmt.Sprintf("gauge(%v):{", len(gaugeList)))
		sort.Strings(gaugeList)
		for _, v := range gaugeList {
			sb.WriteString("[")
			sb.WriteString(v)
			sb.WriteString("],")
		}
		sb.WriteString("}, ")
	}

	if sb.Len() > 0 {
		return title + "==>" + sb.String()
	}
	return ""
}
