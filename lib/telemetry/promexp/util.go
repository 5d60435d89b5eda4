//
// (C) Copyright 2021-2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package promexp

import (
	"sort"
	"strings"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vine-io/scst/lib/scst"
)

const metricPrefix = "scst"

type labelMap map[string]string

func (lm labelMap) keys() (keys []string) {
	for label := range lm {
		keys = append(keys, label)
	}
	sort.Strings(keys)

	return
}

func sanitizeMetricName(in string) string {
	return strings.Map(func(r rune) rune {
		switch {
		// Valid names for Prometheus are limited to:
		case r >= 'a' && r <= 'z': // lowercase letters
		case r >= 'A' && r <= 'Z': // uppercase letters
		case unicode.IsDigit(r): // digits
		default: // sanitize any other character
			return '_'
		}

		return r
	}, strings.TrimLeft(in, "/"))
}

func appendName(cur, name string) string {
	if cur == "" {
		return name
	}
	return cur + "_" + name
}

func metricName(parts ...string) string {
	name := metricPrefix
	for _, p := range parts {
		name = appendName(name, p)
	}
	return sanitizeMetricName(name)
}

type gvMap map[string]*prometheus.GaugeVec

func (m gvMap) add(name, help string, value float64, labels labelMap) {
	var gv *prometheus.GaugeVec
	var found bool

	gv, found = m[name]
	if !found {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, labels.keys())
		m[name] = gv
	}
	gv.With(prometheus.Labels(labels)).Set(value)
}

type cvMap map[string]*prometheus.CounterVec

func (m cvMap) add(name, help string, value float64, labels labelMap) {
	var cv *prometheus.CounterVec
	var found bool

	cv, found = m[name]
	if !found {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, labels.keys())
		m[name] = cv
	}
	cv.With(prometheus.Labels(labels)).Add(value)
}

type metricStat struct {
	name  string
	desc  string
	value float64
}

var statDescs = map[string]string{
	"read_cmd_count":            "READ commands received",
	"read_io_count_kb":          "kilobytes read",
	"read_unaligned_cmd_count":  "READ commands not aligned to the block size",
	"write_cmd_count":           "WRITE commands received",
	"write_io_count_kb":         "kilobytes written",
	"write_unaligned_cmd_count": "WRITE commands not aligned to the block size",
	"bidi_cmd_count":            "bidirectional commands received",
	"bidi_io_count_kb":          "kilobytes transferred by bidirectional commands",
	"bidi_unaligned_cmd_count":  "bidirectional commands not aligned to the block size",
}

// getMetricStats flattens an I/O stat into named counters, sorted by name.
func getMetricStats(baseName string, s *scst.IOStat) (stats []*metricStat) {
	if s == nil {
		return
	}

	for key, value := range s.Counters() {
		desc, found := statDescs[key]
		if !found {
			desc = key
		}
		stats = append(stats, &metricStat{
			name:  metricName(baseName, key),
			desc:  desc,
			value: float64(value),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].name < stats[j].name
	})

	return
}
