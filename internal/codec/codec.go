// Package codec encodes the opaque values a job carries (trigger rules,
// positional and keyword arguments) into self-describing blobs.
//
// Every blob starts with a magic byte and a format version byte. Encoding
// uses the codec's configured format; decoding dispatches on the version
// found in the blob, so rows written by an older format stay readable after
// the writer format changes.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const magic byte = 0xA5

const headerSize = 2

// Format versions understood by this package
const (
	VersionJSON byte = 1
	VersionYAML byte = 2
)

// ErrVersionMismatch is returned when a blob carries no header or an unregistered format version
var ErrVersionMismatch = errors.New("codec version mismatch")

// Format is a single wire format selectable by version
type Format interface {
	Version() byte
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	mu      sync.RWMutex
	formats = map[byte]Format{}
)

func init() {
	for _, f := range []Format{jsonFormat{}, yamlFormat{}} {
		if err := Register(f); err != nil {
			panic(err)
		}
	}
}

// Register makes a format available for encoding and decoding
func Register(f Format) error {
	if f.Version() == 0 {
		return fmt.Errorf("codec %q: version 0 is reserved", f.Name())
	}

	mu.Lock()
	defer mu.Unlock()

	if existing, ok := formats[f.Version()]; ok {
		return fmt.Errorf("codec version %d already registered by %q", f.Version(), existing.Name())
	}
	formats[f.Version()] = f
	return nil
}

func lookup(version byte) (Format, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := formats[version]
	return f, ok
}

// Versions lists the registered format versions in ascending order
func Versions() []byte {
	mu.RLock()
	defer mu.RUnlock()

	versions := make([]byte, 0, len(formats))
	for v := range formats {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// Codec writes blobs in one format and reads blobs in any registered format
type Codec struct {
	writer Format
}

// Default writes JSON blobs
var Default = &Codec{writer: jsonFormat{}}

// New creates a codec that writes with f
func New(f Format) *Codec {
	return &Codec{writer: f}
}

// ForVersion returns a codec writing the registered format with the given version
func ForVersion(version byte) (*Codec, error) {
	f, ok := lookup(version)
	if !ok {
		return nil, fmt.Errorf("%w: version %d is not registered", ErrVersionMismatch, version)
	}
	return New(f), nil
}

// ByName returns a codec writing the registered format with the given name
func ByName(name string) (*Codec, error) {
	mu.RLock()
	defer mu.RUnlock()

	for _, f := range formats {
		if f.Name() == name {
			return New(f), nil
		}
	}
	return nil, fmt.Errorf("%w: format %q is not registered", ErrVersionMismatch, name)
}

// Version returns the version written by Encode
func (c *Codec) Version() byte {
	return c.writer.Version()
}

// Name returns the name of the format written by Encode
func (c *Codec) Name() string {
	return c.writer.Name()
}

// Encode serializes v and prefixes it with the blob header
func (c *Codec) Encode(v any) ([]byte, error) {
	payload, err := c.writer.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s value: %w", c.writer.Name(), err)
	}

	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, magic, c.writer.Version())
	return append(out, payload...), nil
}

// Decode deserializes a blob into v using the format recorded in its header
func (c *Codec) Decode(data []byte, v any) error {
	return Decode(data, v)
}

// Decode deserializes a blob into v using the format recorded in its header
func Decode(data []byte, v any) error {
	version, err := PeekVersion(data)
	if err != nil {
		return err
	}

	f, ok := lookup(version)
	if !ok {
		return fmt.Errorf("%w: blob written by unknown version %d", ErrVersionMismatch, version)
	}

	if err := f.Unmarshal(data[headerSize:], v); err != nil {
		return fmt.Errorf("failed to decode %s value: %w", f.Name(), err)
	}
	return nil
}

// PeekVersion returns the format version recorded in a blob header
func PeekVersion(data []byte) (byte, error) {
	if len(data) < headerSize || data[0] != magic {
		return 0, fmt.Errorf("%w: missing blob header", ErrVersionMismatch)
	}
	return data[1], nil
}
