// Package storage provides a pluggable key-value layer for the local
// generation history. A pebble backend is used on disk and an in-memory
// backend where nothing needs to persist.
package storage
