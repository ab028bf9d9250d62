// Package runmeta stores the small key-value sidecar metadata attached to
// each run file: its entry count, plus the import timestamp for a freshly
// written run or the number of source runs for a merged one.
// The encoding is the teacher's self-describing length-prefixed KV blob,
// trimmed of the CID-specific accessors that made no sense outside a
// content-addressed store.
package runmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	MaxNumKVs    = 255
	MaxKeySize   = 255
	MaxValueSize = 255
)

// KV is a single metadata key-value pair.
type KV struct {
	Key   []byte
	Value []byte
}

func NewKV(key, value []byte) KV {
	return KV{Key: key, Value: value}
}

// Meta is an ordered, possibly-duplicate-keyed list of KV pairs.
type Meta struct {
	KeyVals []KV
}

// Bytes serializes the metadata, panicking only if the size limits set by
// MaxNumKVs/MaxKeySize/MaxValueSize have been violated by the caller.
func (m *Meta) Bytes() []byte {
	b, err := m.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

func (m Meta) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if len(m.KeyVals) > MaxNumKVs {
		return nil, fmt.Errorf("runmeta: %d key-value pairs exceeds max %d", len(m.KeyVals), MaxNumKVs)
	}
	buf.WriteByte(byte(len(m.KeyVals)))
	for i, kv := range m.KeyVals {
		if len(kv.Key) > MaxKeySize {
			return nil, fmt.Errorf("runmeta: key %d size %d exceeds max %d", i, len(kv.Key), MaxKeySize)
		}
		buf.WriteByte(byte(len(kv.Key)))
		buf.Write(kv.Key)

		if len(kv.Value) > MaxValueSize {
			return nil, fmt.Errorf("runmeta: value %d size %d exceeds max %d", i, len(kv.Value), MaxValueSize)
		}
		buf.WriteByte(byte(len(kv.Value)))
		buf.Write(kv.Value)
	}
	return buf.Bytes(), nil
}

// decoder is the minimal read surface UnmarshalWithDecoder needs; a
// *bytes.Reader satisfies it directly, with no external decoder library.
type decoder interface {
	io.ByteReader
	io.Reader
}

func (m *Meta) UnmarshalWithDecoder(r decoder) error {
	numKVs, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("runmeta: read kv count: %w", err)
	}
	if numKVs > MaxNumKVs {
		return fmt.Errorf("runmeta: %d key-value pairs exceeds max %d", numKVs, MaxNumKVs)
	}
	for i := 0; i < int(numKVs); i++ {
		var kv KV
		keyLen, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("runmeta: read key %d length: %w", i, err)
		}
		kv.Key = make([]byte, keyLen)
		if _, err := io.ReadFull(r, kv.Key); err != nil {
			return fmt.Errorf("runmeta: read key %d: %w", i, err)
		}

		valueLen, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("runmeta: read value %d length: %w", i, err)
		}
		kv.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(r, kv.Value); err != nil {
			return fmt.Errorf("runmeta: read value %d: %w", i, err)
		}
		m.KeyVals = append(m.KeyVals, kv)
	}
	return nil
}

func (m *Meta) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return m.UnmarshalWithDecoder(bytes.NewReader(b))
}

// Add appends a key-value pair, copying both slices.
func (m *Meta) Add(key, value []byte) error {
	if len(m.KeyVals) >= MaxNumKVs {
		return fmt.Errorf("runmeta: %d key-value pairs exceeds max %d", len(m.KeyVals), MaxNumKVs)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf("runmeta: key size %d exceeds max %d", len(key), MaxKeySize)
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("runmeta: value size %d exceeds max %d", len(value), MaxValueSize)
	}
	m.KeyVals = append(m.KeyVals, KV{Key: cloneBytes(key), Value: cloneBytes(value)})
	return nil
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (m *Meta) AddString(key []byte, value string) error {
	return m.Add(key, []byte(value))
}

func (m Meta) GetString(key []byte) (string, bool) {
	value, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return string(value), true
}

func (m *Meta) AddUint64(key []byte, value uint64) error {
	return m.Add(key, encodeUint64(value))
}

func (m Meta) GetUint64(key []byte) (uint64, bool) {
	value, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	return decodeUint64(value), true
}

func encodeUint64(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}

func decodeUint64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// Replace overwrites the first value stored under key.
func (m *Meta) Replace(key, value []byte) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("runmeta: key size %d exceeds max %d", len(key), MaxKeySize)
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("runmeta: value size %d exceeds max %d", len(value), MaxValueSize)
	}
	for i, kv := range m.KeyVals {
		if bytes.Equal(kv.Key, key) {
			m.KeyVals[i].Value = cloneBytes(value)
			return nil
		}
	}
	return fmt.Errorf("runmeta: key %q not found", key)
}

// Get returns the first value stored under key.
func (m Meta) Get(key []byte) ([]byte, bool) {
	for _, kv := range m.KeyVals {
		if bytes.Equal(kv.Key, key) {
			return kv.Value, true
		}
	}
	return nil, false
}

// GetAll returns every value stored under key, in insertion order.
func (m Meta) GetAll(key []byte) [][]byte {
	var values [][]byte
	for _, kv := range m.KeyVals {
		if bytes.Equal(kv.Key, key) {
			values = append(values, kv.Value)
		}
	}
	return values
}

// Count returns how many values are stored under key.
func (m Meta) Count(key []byte) int {
	count := 0
	for _, kv := range m.KeyVals {
		if bytes.Equal(kv.Key, key) {
			count++
		}
	}
	return count
}

// Remove deletes every KV pair stored under key.
func (m *Meta) Remove(key []byte) {
	var kept []KV
	for _, kv := range m.KeyVals {
		if !bytes.Equal(kv.Key, key) {
			kept = append(kept, kv)
		}
	}
	m.KeyVals = kept
}

// HasDuplicateKeys reports whether any key appears more than once.
func (m Meta) HasDuplicateKeys() bool {
	seen := make(map[string]struct{}, len(m.KeyVals))
	for _, kv := range m.KeyVals {
		k := string(kv.Key)
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
	}
	return false
}

// Well-known keys. Run sidecars are written with KeyNumEntries plus
// KeyImportedAt or KeyGeneration; KeySourcePath, KeyLevel and KeyNumGames
// are not written by any package in this module.
var (
	KeySourcePath  = []byte("source_path")
	KeyLevel       = []byte("level")
	KeyImportedAt  = []byte("imported_at")
	KeyGeneration  = []byte("generation")
	KeyNumEntries  = []byte("num_entries")
	KeyNumGames    = []byte("num_games")
)
