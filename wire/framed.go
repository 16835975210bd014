package wire

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/errors"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	headerSize = 4
	// DefaultMaxFrameSize bounds a single frame, header excluded.
	DefaultMaxFrameSize = 8 << 20
)

var _ contract.FrameConn = (*Framed)(nil)

// Framed splits a byte stream into frames prefixed by their length as a
// 4-byte big-endian integer.
type Framed struct {
	conn         io.ReadWriteCloser
	reader       *bufio.Reader
	maxFrameSize int
	writeMu      sync.Mutex
}

func NewFramed(conn io.ReadWriteCloser, maxFrameSize int) *Framed {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Framed{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		maxFrameSize: maxFrameSize,
	}
}

// ReadFrame returns io.EOF when the stream ends cleanly between two frames and
// io.ErrUnexpectedEOF when it ends in the middle of one.
func (f *Framed) ReadFrame() ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(f.reader, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if uint64(size) > uint64(f.maxFrameSize) {
		return nil, fmt.Errorf("%w: %d > %d bytes", errors.ErrFrameTooLarge, size, f.maxFrameSize)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(f.reader, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func (f *Framed) WriteFrame(frame []byte) error {
	if len(frame) > f.maxFrameSize {
		return fmt.Errorf("%w: %d > %d bytes", errors.ErrFrameTooLarge, len(frame), f.maxFrameSize)
	}
	buf := make([]byte, headerSize+len(frame))
	binary.BigEndian.PutUint32(buf, uint32(len(frame)))
	copy(buf[headerSize:], frame)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, err := f.conn.Write(buf)
	return err
}

func (f *Framed) Close() error {
	return f.conn.Close()
}
