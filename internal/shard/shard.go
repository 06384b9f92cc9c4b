// Package shard maps record references onto a fixed number of stripes.
package shard

import (
	"hash/fnv"
	"strings"
)

// MaxStripes bounds the stripe count accepted by Index.
const MaxStripes = 256

// Ref computes the type-qualified reference of a record, e.g. "user/pavan".
func Ref(resource, id string) string {
	return strings.ToLower(resource) + "/" + id
}

// Index returns the stripe a reference falls into.
// With numStripes<=1, every reference maps to stripe 0.
// numStripes above MaxStripes is capped.
func Index(ref string, numStripes int) int {
	if numStripes <= 1 {
		return 0
	}
	if numStripes > MaxStripes {
		numStripes = MaxStripes
	}
	h := fnv.New32a()
	h.Write([]byte(ref))
	return int(h.Sum32() % uint32(numStripes))
}
