package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// recordReader reads records framed by a 16-bit big-endian length, the
// RTP-over-TCP framing of RFC 4571.
type recordReader struct {
	r   *bufio.Reader
	buf []byte
}

func newRecordReader(r io.Reader) *recordReader {
	return &recordReader{r: bufio.NewReader(r), buf: make([]byte, 0xFFFF)}
}

// next returns the next record, valid until the following call, or
// io.EOF at a clean end of input.
func (rr *recordReader) next() ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(rr.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated record length: %w", err)
		}
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(rr.r, rr.buf[:n]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("truncated %d byte record: %w", n, err)
	}
	return rr.buf[:n], nil
}

// writeRecord frames rec for recordReader.
func writeRecord(w io.Writer, rec []byte) error {
	if len(rec) > 0xFFFF {
		return fmt.Errorf("record of %d bytes does not fit the length prefix", len(rec))
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(rec)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(rec)
	return err
}
