package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestPositionedWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	w, err := newPositionedWriter(file, true)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("starts at end of file", func(t *testing.T) {
		if w.Pos() != 3 {
			t.Errorf("Pos() = %v, want %v", w.Pos(), 3)
		}
	})

	t.Run("write advances offset", func(t *testing.T) {
		n, err := w.Write([]byte("hello"))
		if err != nil {
			t.Fatal(err)
		}
		if n != 5 {
			t.Errorf("Write() = %v, want %v", n, 5)
		}
		if w.Pos() != 8 {
			t.Errorf("Pos() = %v, want %v", w.Pos(), 8)
		}
	})

	t.Run("flush reaches the file", func(t *testing.T) {
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "abchello" {
			t.Errorf("file = %q, want %q", data, "abchello")
		}
	})

	if err := w.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestPositionedReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := newPositionedReader(file, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if r.Pos() != 4 {
		t.Errorf("Pos() = %v, want %v", r.Pos(), 4)
	}

	pos, err := r.Seek(2, io.SeekStart)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 2 || r.Pos() != 2 {
		t.Errorf("Seek() = %v, Pos() = %v, want %v", pos, r.Pos(), 2)
	}

	buf = make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "234" {
		t.Errorf("Read() = %q, want %q", buf, "234")
	}
	if r.Pos() != 5 {
		t.Errorf("Pos() = %v, want %v", r.Pos(), 5)
	}

	// relative seeks must account for bytes sitting in the buffer
	pos, err = r.Seek(1, io.SeekCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 6 {
		t.Errorf("Seek() = %v, want %v", pos, 6)
	}

	buf = make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "6" {
		t.Errorf("Read() = %q, want %q", buf, "6")
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "789" || r.Pos() != 10 {
		t.Errorf("ReadAll() = %q at %v, want %q at %v", rest, r.Pos(), "789", 10)
	}
}

func TestPositionedWriterSync(t *testing.T) {
	for _, sync := range []bool{true, false} {
		t.Run(fmt.Sprintf("sync=%v", sync), func(t *testing.T) {
			file, err := os.OpenFile(filepath.Join(t.TempDir(), "stream"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				t.Fatal(err)
			}
			w, err := newPositionedWriter(file, sync)
			if err != nil {
				t.Fatal(err)
			}

			want := 0
			if sync {
				want = 1
			}
			w.Write([]byte("abc"))
			if err := w.Flush(); err != nil {
				t.Fatal(err)
			}
			if w.syncs != want {
				t.Errorf("syncs after Flush() = %v, want %v", w.syncs, want)
			}

			// closing must not leave synced writers short of the disk
			w.Write([]byte("def"))
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			if w.syncs != 2*want {
				t.Errorf("syncs after Close() = %v, want %v", w.syncs, 2*want)
			}
		})
	}
}
