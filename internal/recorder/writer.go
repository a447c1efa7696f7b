package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanun0323/errors"
)

var ErrClosed = errors.New("file sink closed")

// FileSink appends framed records to rotating segment files.
type FileSink struct {
	cfg FileConfig
	now func() time.Time

	mu          sync.Mutex
	seg         *segmentWriter
	segID       uint64
	headerBuf   []byte
	checksumBuf [recordChecksumSize]byte
	closed      bool
}

// NewFileSink creates a file sink and ensures the target directory exists.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create sink dir")
	}
	return &FileSink{
		cfg:       cfg,
		now:       time.Now,
		headerBuf: make([]byte, recordHeaderSize),
	}, nil
}

func (f *FileSink) Name() string {
	return "file"
}

// Write appends the batch and flushes it to the current segment.
func (f *FileSink) Write(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	for _, rec := range records {
		if err := f.writeRecord(rec); err != nil {
			return err
		}
	}
	if f.seg == nil {
		return nil
	}
	if err := f.seg.buf.Flush(); err != nil {
		return errors.Wrap(err, "flush segment")
	}
	if f.cfg.Sync {
		return f.seg.file.Sync()
	}
	return nil
}

// Close flushes and closes the current segment.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	err := closeSegment(f.seg)
	f.seg = nil
	return err
}

func (f *FileSink) writeRecord(rec Record) error {
	payload, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	now := f.now().UTC()
	recordSize := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if f.shouldRotate(now, recordSize) {
		if err := closeSegment(f.seg); err != nil {
			return err
		}
		f.seg = nil
		opened, err := f.openSegment(now)
		if err != nil {
			return err
		}
		f.seg = opened
	}

	encodeHeader(f.headerBuf, rec.Timestamp, len(payload))
	binary.LittleEndian.PutUint32(f.checksumBuf[:], checksum(f.headerBuf, payload))

	if _, err := f.seg.buf.Write(f.headerBuf); err != nil {
		return err
	}
	if _, err := f.seg.buf.Write(payload); err != nil {
		return err
	}
	if _, err := f.seg.buf.Write(f.checksumBuf[:]); err != nil {
		return err
	}

	f.seg.size += recordSize
	return nil
}

func (f *FileSink) shouldRotate(now time.Time, nextSize int64) bool {
	if f.seg == nil {
		return true
	}
	if f.seg.size > 0 && f.seg.size+nextSize > f.cfg.SegmentMaxBytes {
		return true
	}
	if f.cfg.SegmentMaxDuration > 0 && now.Sub(f.seg.openedAt) >= f.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (f *FileSink) openSegment(now time.Time) (*segmentWriter, error) {
	ts := now.Format("20060102-150405")
	for {
		f.segID++
		name := fmt.Sprintf("%s-%s-%06d%s", f.cfg.FilePrefix, ts, f.segID, segmentExt)
		path := filepath.Join(f.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, errors.Wrap(err, "open segment")
		}
		return &segmentWriter{
			file:     file,
			buf:      bufio.NewWriterSize(file, f.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func closeSegment(seg *segmentWriter) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}
