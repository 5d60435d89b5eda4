//
// (C) Copyright 2024 Intel Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scst

import (
	"strings"
)

const (
	optionSep   = ";"
	optionAssig = "="
)

// Options is an ordered set of key=value parameters passed through to
// the kernel. Keys keep the position of their first insertion. The zero
// value is an empty set. Set and Delete copy on write, so a copied
// Options never sees changes made through another copy.
type Options struct {
	keys   []string
	values map[string]string
}

// NewOptions builds an Options from alternating keys and values. A
// trailing key without a value is given an empty value.
func NewOptions(kv ...string) Options {
	var o Options
	for i := 0; i < len(kv); i += 2 {
		val := ""
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		o.Set(kv[i], val)
	}
	return o
}

// ParseOptions parses the "k=v;k=v" form produced by String.
func ParseOptions(in string) (Options, error) {
	var o Options
	for _, tok := range strings.Split(in, optionSep) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, val, found := strings.Cut(tok, optionAssig)
		if !found {
			return Options{}, errInvalid("option %q is not in key=value form", tok)
		}
		o.Set(key, val)
	}
	return o, o.Validate()
}

// own replaces the shared key slice and value map with private copies.
func (o *Options) own() {
	keys := make([]string, len(o.keys), len(o.keys)+1)
	copy(keys, o.keys)
	values := make(map[string]string, len(o.values)+1)
	for k, v := range o.values {
		values[k] = v
	}
	o.keys, o.values = keys, values
}

// Set adds or replaces the value for key.
func (o *Options) Set(key, value string) {
	o.own()
	if _, found := o.values[key]; !found {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value for key.
func (o Options) Get(key string) (string, bool) {
	val, found := o.values[key]
	return val, found
}

// Has returns true if key is set.
func (o Options) Has(key string) bool {
	_, found := o.values[key]
	return found
}

// Delete removes key.
func (o *Options) Delete(key string) {
	if _, found := o.values[key]; !found {
		return
	}
	o.own()
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o Options) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o Options) Len() int {
	return len(o.keys)
}

// Map returns an unordered copy of the options.
func (o Options) Map() map[string]string {
	out := make(map[string]string, len(o.keys))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// Merge returns a copy of o with other's keys set on top.
func (o Options) Merge(other Options) Options {
	var out Options
	for _, k := range o.keys {
		out.Set(k, o.values[k])
	}
	for _, k := range other.keys {
		out.Set(k, other.values[k])
	}
	return out
}

// Equal returns true if both sets hold the same pairs, ignoring order.
func (o Options) Equal(other Options) bool {
	if o.Len() != other.Len() {
		return false
	}
	for k, v := range o.values {
		if ov, found := other.values[k]; !found || ov != v {
			return false
		}
	}
	return true
}

// String renders the options in the kernel's "k=v;k=v" form.
func (o Options) String() string {
	pairs := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		pairs = append(pairs, k+optionAssig+o.values[k])
	}
	return strings.Join(pairs, optionSep)
}

// Validate checks option syntax only. Keys are never checked against a
// schema, so unknown keys pass through to the kernel.
func (o Options) Validate() error {
	for _, k := range o.keys {
		if err := checkOptionKey(k); err != nil {
			return err
		}
		if err := checkOptionValue(k, o.values[k]); err != nil {
			return err
		}
	}
	return nil
}

// unknownKeys returns the keys not present in known.
func (o Options) unknownKeys(known []string) []string {
	var unknown []string
	for _, k := range o.keys {
		if !contains(known, k) {
			unknown = append(unknown, k)
		}
	}
	return unknown
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
