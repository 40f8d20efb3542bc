// Package wal journals every successful mutating operation so the
// engine state can be rebuilt deterministically after a restart.
package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Frame layout per record: length (4, LE) + CRC32 of the body (4, LE)
// followed by the body itself.
const frameHeaderSize = 8

const currentSegment = "current.wal"

type Config struct {
	Dir             string
	SegmentSize     uint64
	SegmentDuration time.Duration
}

const (
	defaultSegmentSize     = 64 << 20
	defaultSegmentDuration = time.Hour
)

// WAL is a segmented append-only log. The active segment is always
// current.wal; full segments rotate to a numbered file and are listed
// in the segment index. Not safe for concurrent use; the service layer
// serializes writes.
type WAL struct {
	cfg    Config
	file   *os.File
	writer *bufio.Writer

	seq             uint64
	segmentID       int
	segmentStartSeq uint64
	bytesWritten    uint64
	lastRotation    time.Time
}

// Open creates or resumes the log in cfg.Dir. A torn tail in the
// current segment, from a crash mid-append, is truncated away.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = defaultSegmentSize
	}
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = defaultSegmentDuration
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	var segID int
	var seq uint64
	if last, err := loadLastIndexEntry(cfg.Dir); err != nil {
		return nil, err
	} else if last != nil {
		id, err := strconv.Atoi(strings.TrimSuffix(last.File, ".wal"))
		if err != nil {
			return nil, fmt.Errorf("wal: bad segment name %q in index", last.File)
		}
		segID = id
		seq = last.LastSeq
	}

	f, err := os.OpenFile(filepath.Join(cfg.Dir, currentSegment), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	w := &WAL{
		cfg:             cfg,
		file:            f,
		segmentID:       segID,
		seq:             seq,
		segmentStartSeq: seq + 1,
		lastRotation:    time.Now(),
	}
	if err := w.recover(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	w.writer = bufio.NewWriterSize(f, 1<<20)
	return w, nil
}

// LastSeq returns the sequence of the most recently appended record.
func (w *WAL) LastSeq() uint64 { return w.seq }

// Append assigns the next sequence number to rec and frames it into
// the current segment. The record is durable after the next Sync.
func (w *WAL) Append(rec *Record) error {
	rec.Seq = w.seq + 1
	if rec.Time == 0 {
		rec.Time = time.Now().UnixNano()
	}
	body := EncodeRecord(rec)
	frameSize := uint64(frameHeaderSize + len(body))
	if w.shouldRotate(frameSize) {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if err := writeFrame(w.writer, body); err != nil {
		return err
	}
	w.seq++
	w.bytesWritten += frameSize
	return nil
}

// Sync flushes buffered frames and forces them to disk.
func (w *WAL) Sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes and closes the current segment. It stays current.wal
// and is resumed on the next Open.
func (w *WAL) Close() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

func (w *WAL) shouldRotate(nextFrame uint64) bool {
	if w.bytesWritten == 0 {
		return false
	}
	return w.bytesWritten+nextFrame >= w.cfg.SegmentSize ||
		time.Since(w.lastRotation) >= w.cfg.SegmentDuration
}

func (w *WAL) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	w.segmentID++
	sealed := fmt.Sprintf("%06d.wal", w.segmentID)
	oldPath := filepath.Join(w.cfg.Dir, currentSegment)
	if err := os.Rename(oldPath, filepath.Join(w.cfg.Dir, sealed)); err != nil {
		return err
	}
	if err := appendIndexEntry(w.cfg.Dir, indexEntry{
		File:     sealed,
		FirstSeq: w.segmentStartSeq,
		LastSeq:  w.seq,
		SealedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	f, err := os.OpenFile(oldPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	w.segmentStartSeq = w.seq + 1
	w.bytesWritten = 0
	w.lastRotation = time.Now()
	return nil
}

// recover scans the current segment, restoring seq and byte offset,
// and truncates anything after the last intact frame.
func (w *WAL) recover() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(w.file)
	var valid int64
	var header [frameHeaderSize]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncate(valid)
			}
			return err
		}
		body := make([]byte, binary.LittleEndian.Uint32(header[:4]))
		if _, err := io.ReadFull(r, body); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncate(valid)
			}
			return err
		}
		if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(header[4:]) {
			return w.truncate(valid)
		}
		rec, err := DecodeRecord(body)
		if err != nil {
			return w.truncate(valid)
		}
		w.seq = rec.Seq
		valid += int64(frameHeaderSize + len(body))
	}
	w.bytesWritten = uint64(valid)
	return nil
}

func (w *WAL) truncate(valid int64) error {
	if err := w.file.Truncate(valid); err != nil {
		return err
	}
	w.bytesWritten = uint64(valid)
	return nil
}

func writeFrame(wr io.Writer, body []byte) error {
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(header[4:], crc32.ChecksumIEEE(body))
	if _, err := wr.Write(header[:]); err != nil {
		return err
	}
	_, err := wr.Write(body)
	return err
}
