package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rise-and-shine/recoengine/cache"
)

// cacheCollector reads cache.Stats at scrape time.
type cacheCollector struct {
	c         cache.Cache
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	sets      *prometheus.Desc
	evictions *prometheus.Desc
	errors    *prometheus.Desc
}

func newCacheCollector(c cache.Cache) *cacheCollector {
	labels := prometheus.Labels{"cache": c.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, labels)
	}
	return &cacheCollector{
		c:         c,
		hits:      desc("hits_total", "Cache hits."),
		misses:    desc("misses_total", "Cache misses, expiries included."),
		sets:      desc("sets_total", "Cache writes."),
		evictions: desc("evictions_total", "Entries removed by invalidation or expiry."),
		errors:    desc("errors_total", "Backend errors."),
	}
}

func (cc *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.hits
	ch <- cc.misses
	ch <- cc.sets
	ch <- cc.evictions
	ch <- cc.errors
}

func (cc *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := cc.c.Stats()
	ch <- prometheus.MustNewConstMetric(cc.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(cc.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(cc.sets, prometheus.CounterValue, float64(s.Sets))
	ch <- prometheus.MustNewConstMetric(cc.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(cc.errors, prometheus.CounterValue, float64(s.Errors))
}
