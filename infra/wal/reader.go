package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Reader iterates every record in the log in append order, sealed
// segments first, then the current one.
type Reader struct {
	paths []string
	file  *os.File
	br    *bufio.Reader
	rec   *Record
	err   error
}

// OpenReader opens the log at dir for sequential reading. A directory
// with no log yields a reader that is immediately exhausted.
func OpenReader(dir string) (*Reader, error) {
	entries, err := loadIndex(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, filepath.Join(dir, e.File))
	}
	current := filepath.Join(dir, currentSegment)
	if _, err := os.Stat(current); err == nil {
		paths = append(paths, current)
	}
	return &Reader{paths: paths}, nil
}

// Next advances to the next record. It returns false at the end of the
// log or on the first error; check Err to tell them apart.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		if r.br == nil {
			if len(r.paths) == 0 {
				return false
			}
			f, err := os.Open(r.paths[0])
			r.paths = r.paths[1:]
			if err != nil {
				r.err = err
				return false
			}
			r.file = f
			r.br = bufio.NewReader(f)
		}

		rec, err := readFrame(r.br)
		if err == io.EOF {
			r.file.Close()
			r.file, r.br = nil, nil
			continue
		}
		if err != nil {
			r.err = err
			r.file.Close()
			r.file, r.br = nil, nil
			return false
		}
		r.rec = rec
		return true
	}
}

// Record returns the record the last successful Next produced.
func (r *Reader) Record() *Record { return r.rec }

// Err returns the error that terminated iteration, nil on clean EOF.
func (r *Reader) Err() error { return r.err }

func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func readFrame(br *bufio.Reader) (*Record, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrCorruptRecord
		}
		return nil, err
	}
	body := make([]byte, binary.LittleEndian.Uint32(header[:4]))
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, ErrCorruptRecord
	}
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(header[4:]) {
		return nil, ErrCorruptRecord
	}
	return DecodeRecord(body)
}
