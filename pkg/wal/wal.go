package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultFileName is the WAL filename under the data directory.
const DefaultFileName = "toydb.wal"

// WAL manages a single append-only log file. Appends are buffered; Sync
// flushes the buffer and fsyncs, which is the durability point the executor
// relies on before applying an update or delete to the heap; an insert is
// logged and synced right after its heap insert.
type WAL struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Open opens or creates the WAL file at path in append mode.
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open log file: %w", err)
	}
	return &WAL{
		path: path,
		file: file,
		w:    bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// Path returns the log file path.
func (w *WAL) Path() string { return w.path }

// Append serializes the record and writes its frame to the log buffer. The
// record is not durable until Sync returns.
func (w *WAL) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	frame, err := rec.Encode()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("wal: append record: %w", err)
	}
	return nil
}

// Sync flushes buffered frames and fsyncs the log to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Close flushes pending frames and closes the file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("wal: final flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("wal: final sync: %w", err)
	}
	return w.file.Close()
}

// Replay reads the log at path from offset zero and invokes visit for each
// record in order, returning the byte length of the valid prefix. A missing
// file replays nothing. A torn trailing frame (process killed mid-append)
// ends replay at the last complete frame; a complete frame that fails its
// checksum aborts with ErrCorruptRecord.
//
// Callers that reopen the log for appending should truncate it to the
// returned length first, so fresh records never land behind a torn tail.
func Replay(path string, visit func(*Record) error) (int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wal: open log for replay: %w", err)
	}
	defer file.Close()

	r := bufio.NewReaderSize(file, 64*1024)
	var valid int64
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return valid, nil
			}
			return valid, fmt.Errorf("wal: read frame length: %w", err)
		}
		frameLen := binary.LittleEndian.Uint32(lenBuf[:])
		body := make([]byte, frameLen)
		if _, err := io.ReadFull(r, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// Torn tail: the length prefix made it to disk but the
				// frame body did not. Everything before it is intact.
				return valid, nil
			}
			return valid, fmt.Errorf("wal: read frame body: %w", err)
		}
		rec, err := DecodeRecord(body)
		if err != nil {
			return valid, err
		}
		if err := visit(rec); err != nil {
			return valid, err
		}
		valid += 4 + int64(frameLen)
	}
}

// TruncateTo cuts the log file at path down to length, discarding a torn
// tail found during replay. A missing file is a no-op.
func TruncateTo(path string, length int64) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("wal: stat log: %w", err)
	}
	if info.Size() <= length {
		return nil
	}
	if err := os.Truncate(path, length); err != nil {
		return fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	return nil
}
