// Package stats exports correlation.Statistics as Prometheus metrics
// for the reference host binary's optional --metrics-addr listener.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/worldwidemv/gsbp-go/pkg/correlation"
)

// Source is anything that can report the current correlation
// statistics snapshot — pkg/host.Client satisfies this.
type Source interface {
	Stats() correlation.Statistics
}

// Collector is a prometheus.Collector that reads a fresh snapshot
// from Source on every scrape rather than maintaining its own
// counters, so it never drifts from the correlation buffer it wraps.
type Collector struct {
	source Source

	openRequests       *prometheus.Desc
	unclaimedResponses *prometheus.Desc
	goodPackages       *prometheus.Desc
	missingPackages    *prometheus.Desc
	brokenChecksum     *prometheus.Desc
	brokenStructure    *prometheus.Desc
	discardedBytes     *prometheus.Desc
}

func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		openRequests: prometheus.NewDesc(
			"gsbp_open_requests", "Requests currently awaiting a response.", nil, nil),
		unclaimedResponses: prometheus.NewDesc(
			"gsbp_unclaimed_responses", "Responses received but not yet claimed by GetResponse.", nil, nil),
		goodPackages: prometheus.NewDesc(
			"gsbp_good_packages_total", "Packages decoded without error.", nil, nil),
		missingPackages: prometheus.NewDesc(
			"gsbp_missing_packages_total", "GetResponse calls that timed out waiting for a reply.", nil, nil),
		brokenChecksum: prometheus.NewDesc(
			"gsbp_broken_checksum_packages_total", "Frames rejected for a checksum mismatch.", nil, nil),
		brokenStructure: prometheus.NewDesc(
			"gsbp_broken_structure_packages_total", "Frames rejected for a structural error (end byte, oversized payload).", nil, nil),
		discardedBytes: prometheus.NewDesc(
			"gsbp_discarded_bytes_total", "Bytes discarded while resynchronizing to the next start sentinel.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openRequests
	ch <- c.unclaimedResponses
	ch <- c.goodPackages
	ch <- c.missingPackages
	ch <- c.brokenChecksum
	ch <- c.brokenStructure
	ch <- c.discardedBytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.openRequests, prometheus.GaugeValue, float64(s.OpenRequests))
	ch <- prometheus.MustNewConstMetric(c.unclaimedResponses, prometheus.GaugeValue, float64(s.UnclaimedResponses))
	ch <- prometheus.MustNewConstMetric(c.goodPackages, prometheus.CounterValue, float64(s.GoodPackages))
	ch <- prometheus.MustNewConstMetric(c.missingPackages, prometheus.CounterValue, float64(s.MissingPackages))
	ch <- prometheus.MustNewConstMetric(c.brokenChecksum, prometheus.CounterValue, float64(s.BrokenChecksum))
	ch <- prometheus.MustNewConstMetric(c.brokenStructure, prometheus.CounterValue, float64(s.BrokenStructure))
	ch <- prometheus.MustNewConstMetric(c.discardedBytes, prometheus.CounterValue, float64(s.DiscardedBytes))
}
