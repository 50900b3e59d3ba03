package internal

import (
	"bufio"
	"io"
	"os"
)

// positionedReader is a buffered reader over a file that always knows the
// logical offset of the next byte it will return.
type positionedReader struct {
	file   *os.File
	reader *bufio.Reader
	pos    int64
}

func newPositionedReader(file *os.File, bufSize int) (*positionedReader, error) {
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &positionedReader{
		file:   file,
		reader: bufio.NewReaderSize(file, bufSize),
		pos:    pos,
	}, nil
}

func (r *positionedReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seek moves the underlying file and drops buffered bytes. The offset is
// taken from the file's answer, never computed locally.
func (r *positionedReader) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		// buffered bytes were read from the file but not handed out yet
		offset -= int64(r.reader.Buffered())
	}
	pos, err := r.file.Seek(offset, whence)
	if err != nil {
		return r.pos, err
	}
	r.reader.Reset(r.file)
	r.pos = pos
	return pos, nil
}

func (r *positionedReader) Pos() int64 {
	return r.pos
}

func (r *positionedReader) Close() error {
	return r.file.Close()
}

// positionedWriter is a buffered appender that tracks the file offset the
// next written byte will land on.
type positionedWriter struct {
	file   *os.File
	writer *bufio.Writer
	pos    int64
	sync   bool
	syncs  int
}

func newPositionedWriter(file *os.File, sync bool) (*positionedWriter, error) {
	// append mode writes at the end regardless of the cursor, so start there
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	return &positionedWriter{
		file:   file,
		writer: bufio.NewWriter(file),
		pos:    pos,
		sync:   sync,
	}, nil
}

func (w *positionedWriter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	w.pos += int64(n)
	return n, err
}

func (w *positionedWriter) Seek(offset int64, whence int) (int64, error) {
	if err := w.writer.Flush(); err != nil {
		return w.pos, err
	}
	pos, err := w.file.Seek(offset, whence)
	if err != nil {
		return w.pos, err
	}
	w.pos = pos
	return pos, nil
}

// Flush hands buffered bytes to the OS, and to the disk when sync is set.
func (w *positionedWriter) Flush() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if !w.sync {
		return nil
	}
	w.syncs++
	return w.file.Sync()
}

func (w *positionedWriter) Pos() int64 {
	return w.pos
}

// Close flushes like Flush, so a synced writer is on disk once it is closed.
func (w *positionedWriter) Close() error {
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
