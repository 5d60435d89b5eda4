//
// (C) Copyright 2021-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package promexp

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vine-io/scst/lib/scst"
	"github.com/vine-io/scst/lib/sysfs"
	"github.com/vine-io/scst/logging"
)

type (
	// Source is the part of the control tree read on each scrape. Collect
	// refreshes it from the exporter's goroutine, so it must not be
	// shared with code that uses it elsewhere.
	Source interface {
		Refresh() error
		Handlers() []*scst.Handler
		ISCSI() (*scst.Driver, error)
	}

	// CollectorOpts holds optional collector settings.
	CollectorOpts struct {
		// Ignores holds regular expressions; metrics with matching
		// names are not exported.
		Ignores []string
	}

	// Collector exports SCST device, target and session state as
	// Prometheus metrics.
	Collector struct {
		log            logging.Logger
		summary        *prometheus.SummaryVec
		ignoredMetrics []*regexp.Regexp

		// mu serializes scrapes, the source is not safe for concurrent use.
		mu     sync.Mutex
		source Source
	}
)

func defaultCollectorOpts() *CollectorOpts {
	return &CollectorOpts{}
}

// NewCollector returns a collector reading from source.
func NewCollector(log logging.Logger, opts *CollectorOpts, source Source) (*Collector, error) {
	if source == nil {
		return nil, errors.New("collector must have a source")
	}

	if opts == nil {
		opts = defaultCollectorOpts()
	}

	c := &Collector{
		log:    log,
		source: source,
		summary: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace: metricPrefix,
				Subsystem: "exporter",
				Name:      "scrape_duration_seconds",
				Help:      "scst_exporter: Duration of a scrape job.",
			},
			[]string{"source", "result"},
		),
	}

	for _, pat := range opts.Ignores {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile %q", pat)
		}
		c.ignoredMetrics = append(c.ignoredMetrics, re)
	}

	return c, nil
}

func (c *Collector) isIgnored(name string) bool {
	for _, re := range c.ignoredMetrics {
		if re.MatchString(name) {
			return true
		}
	}

	return false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type metricSet struct {
	c        *Collector
	gauges   gvMap
	counters cvMap
}

func (ms *metricSet) gauge(name, help string, value float64, labels labelMap) {
	if ms.c.isIgnored(name) {
		return
	}
	ms.gauges.add(name, help, value, labels)
}

func (ms *metricSet) ioStat(baseName string, stat *scst.IOStat, labels labelMap) {
	for _, s := range getMetricStats(baseName, stat) {
		if ms.c.isIgnored(s.name) {
			continue
		}
		ms.counters.add(s.name, s.desc, s.value, labels)
	}
}

func (c *Collector) collectDevices(ms *metricSet) {
	for _, h := range c.source.Handlers() {
		for _, d := range h.Devices() {
			labels := labelMap{"handler": h.Name, "device": d.Name}
			ms.gauge(metricName("device", "size_bytes"), "device size in bytes", float64(d.Size), labels)
			ms.gauge(metricName("device", "read_only"), "device is read-only", boolValue(d.ReadOnly), labels)
		}
	}
}

func (c *Collector) collectTarget(ms *metricSet, t *scst.Target) error {
	labels := labelMap{"target": t.Name}
	ms.gauge(metricName("target", "enabled"), "target accepts logins", boolValue(t.Enabled), labels)
	ms.gauge(metricName("target", "luns"), "default LUN mappings", float64(len(t.Luns())), labels)

	sessions, err := t.Sessions()
	if err != nil {
		return err
	}
	ms.gauge(metricName("target", "sessions"), "active sessions", float64(len(sessions)), labels)

	for _, s := range sessions {
		stat, err := s.IOStat()
		if err != nil {
			if scst.IsNotFound(err) {
				continue
			}
			return err
		}
		ms.ioStat("session", stat, labelMap{
			"target":    t.Name,
			"session":   s.Name,
			"initiator": s.InitiatorName,
		})
	}

	stat, err := t.IOStat()
	if err != nil {
		return err
	}
	ms.ioStat("target", stat, labels)

	return nil
}

func (c *Collector) collectTargets(ms *metricSet) error {
	iscsi, err := c.source.ISCSI()
	if err != nil {
		c.log.Debugf("skipping target metrics: %s", err)
		return nil
	}

	ms.gauge(metricName("driver", "enabled"), "target driver enabled",
		boolValue(iscsi.Enabled), labelMap{"driver": iscsi.Name})

	for _, t := range iscsi.Targets() {
		if err := c.collectTarget(ms, t); err != nil {
			if scst.IsNotFound(err) {
				c.log.Debugf("target %s vanished during scrape", t.Name)
				continue
			}
			return errors.Wrapf(err, "target %s", t.Name)
		}
	}

	return nil
}

// Collect refreshes the control tree and sends the current metrics.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	if ch == nil {
		c.log.Error("passed a nil channel")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	result := "success"
	defer func() {
		c.summary.WithLabelValues("scst", result).Observe(time.Since(start).Seconds())
		c.summary.Collect(ch)
	}()

	ms := &metricSet{
		c:        c,
		gauges:   make(gvMap),
		counters: make(cvMap),
	}

	if err := c.source.Refresh(); err != nil {
		c.log.Errorf("failed to refresh control tree: %s", err)
		result = "failure"
		return
	}

	c.collectDevices(ms)
	if err := c.collectTargets(ms); err != nil {
		c.log.Errorf("failed to collect target metrics: %s", err)
		result = "failure"
	}

	for _, gv := range ms.gauges {
		gv.Collect(ch)
	}
	for _, cv := range ms.counters {
		cv.Collect(ch)
	}
}

// Describe sends the descriptors of the fixed metrics. Per-object
// metrics vary between scrapes and are left undescribed.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.summary.Describe(ch)
}

// newTreeCollector returns a collector reading from its own attachment
// to tree.
func newTreeCollector(log logging.Logger, opts *CollectorOpts, tree sysfs.Tree) (*Collector, error) {
	if tree == nil {
		return nil, errors.New("collector must have a control tree")
	}

	s, err := scst.New(log, tree)
	if err != nil {
		return nil, errors.Wrap(err, "attaching collector to control tree")
	}

	return NewCollector(log, opts, s)
}

// NewRegisterFn returns a function which registers a collector for tree
// with the default registry. The collector attaches to tree separately
// from any caller handle.
func NewRegisterFn(tree sysfs.Tree, opts *CollectorOpts) RegMonFn {
	return func(_ context.Context, log logging.Logger) error {
		c, err := newTreeCollector(log, opts, tree)
		if err != nil {
			return err
		}
		return prometheus.Register(c)
	}
}
