// Package cache stores synthesized take audio keyed by voice and text.
// A Manager fronts a zstd-compressed disk cache with an in-memory LRU so a
// replayed take skips the synthesis request.
package cache
