// Package wire implements a length-prefixed binary framing: a
// bidirectional primitive serializer over a byte stream, used by both
// the server-side session and the client-side remote store.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrShortRead is returned (wrapped) whenever a frame declares more
// bytes than the stream actually has left — a fatal, session-ending
// condition, never a recoverable one.
var ErrShortRead = errors.New("wire: short read, stream desynchronized")

// Codec serializes the primitives (-, c, i, s, a, m) over a read side
// and a write side that may be the same connection or, in tests,
// independent pipes.
type Codec struct {
	r *bufio.Reader
	w *bufio.Writer
}

// NewCodec wraps r and w for framed primitive I/O. Writes are buffered
// and reach the underlying stream when the buffer fills or on Flush.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

// Flush commits any buffered writes. Each response is flushed before
// the next command is read.
func (c *Codec) Flush() error {
	return errors.Wrap(c.w.Flush(), "wire: flush")
}

// ReadChar reads a single command/response/tag byte. Returning io.EOF
// unmodified (rather than wrapping it) lets callers distinguish a
// clean end-of-stream, on which a command loop should simply stop,
// from mid-frame desynchronization, which must kill the session.
func (c *Codec) ReadChar() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.Wrap(err, "wire: read char")
	}
	return b, nil
}

// WriteChar writes a single tag byte.
func (c *Codec) WriteChar(b byte) error {
	return errors.Wrap(c.w.WriteByte(b), "wire: write char")
}

// ReadUint32 reads the 'i' primitive: 4 bytes, big-endian.
func (c *Codec) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, errors.Wrap(ErrShortRead, err.Error())
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// WriteUint32 writes the 'i' primitive.
func (c *Codec) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := c.w.Write(buf[:])
	return errors.Wrap(err, "wire: write uint32")
}

// ReadBytes reads the 's' primitive: an 'i'-prefixed length followed
// by that many raw bytes.
func (c *Codec) ReadBytes() ([]byte, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, errors.Wrap(ErrShortRead, err.Error())
	}
	return buf, nil
}

// WriteBytes writes the 's' primitive.
func (c *Codec) WriteBytes(data []byte) error {
	if err := c.WriteUint32(uint32(len(data))); err != nil {
		return err
	}
	_, err := c.w.Write(data)
	return errors.Wrap(err, "wire: write bytes")
}

// ReadStrings reads the 'a' primitive: an 'i'-prefixed count of 's'
// items. Items are returned as Go strings, which hold arbitrary bytes
// just as well as a []byte would and match the Path representation
// used by the hkv package.
func (c *Codec) ReadStrings() ([]string, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

// WriteStrings writes the 'a' primitive.
func (c *Codec) WriteStrings(items []string) error {
	if err := c.WriteUint32(uint32(len(items))); err != nil {
		return err
	}
	for _, s := range items {
		if err := c.WriteBytes([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringMap reads the 'm' primitive: an 'i'-prefixed count of
// (s, s) pairs. Duplicate keys on the wire mean the last one wins.
func (c *Codec) ReadStringMap() (map[string][]byte, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, n)
	for i := uint32(0); i < n; i++ {
		k, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		v, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		out[string(k)] = v
	}
	return out, nil
}

// WriteStringMap writes the 'm' primitive. Iteration order on the wire
// is unspecified, matching Go's randomized map iteration.
func (c *Codec) WriteStringMap(data map[string][]byte) error {
	if err := c.WriteUint32(uint32(len(data))); err != nil {
		return err
	}
	for k, v := range data {
		if err := c.WriteBytes([]byte(k)); err != nil {
			return err
		}
		if err := c.WriteBytes(v); err != nil {
			return err
		}
	}
	return nil
}
