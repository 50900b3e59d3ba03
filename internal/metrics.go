package internal

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Store statistics to prometheus. The store is read under
// lock, which must be the same lock that serializes every other store call.
type Collector struct {
	store *Store
	lock  sync.Locker

	keys        *prometheus.Desc
	staleBytes  *prometheus.Desc
	segments    *prometheus.Desc
	diskBytes   *prometheus.Desc
	compactions *prometheus.Desc
}

func NewCollector(s *Store, lock sync.Locker) *Collector {
	return &Collector{
		store:       s,
		lock:        lock,
		keys:        prometheus.NewDesc("logcache_keys", "Number of live keys.", nil, nil),
		staleBytes:  prometheus.NewDesc("logcache_stale_bytes", "Log bytes no longer reachable from the index.", nil, nil),
		segments:    prometheus.NewDesc("logcache_segments", "Number of segment files.", nil, nil),
		diskBytes:   prometheus.NewDesc("logcache_disk_bytes", "Total size of all segment files.", nil, nil),
		compactions: prometheus.NewDesc("logcache_compactions_total", "Compactions performed since open.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.staleBytes
	ch <- c.segments
	ch <- c.diskBytes
	ch <- c.compactions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.Lock()
	stats, err := c.store.Stats()
	c.lock.Unlock()

	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.keys, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(stats.Keys))
	ch <- prometheus.MustNewConstMetric(c.staleBytes, prometheus.GaugeValue, float64(stats.StaleBytes))
	ch <- prometheus.MustNewConstMetric(c.segments, prometheus.GaugeValue, float64(stats.Segments))
	ch <- prometheus.MustNewConstMetric(c.diskBytes, prometheus.GaugeValue, float64(stats.DiskBytes))
	ch <- prometheus.MustNewConstMetric(c.compactions, prometheus.CounterValue, float64(stats.Compactions))
}
