// Package archive writes EPUB containers. An EPUB is a ZIP whose first entry
// must be literally named "mimetype" and stored without compression; every
// other entry is deflated. Readers that enforce the OCF spec reject archives
// violating either rule.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// MimetypeName is the mandated name of the first archive entry.
const MimetypeName = "mimetype"

// ErrMimetypeNotFirst is returned when an entry is written before the
// mimetype, or the mimetype is written twice.
var ErrMimetypeNotFirst = errors.New("mimetype must be the first archive entry")

// Entry is a named byte blob destined for the archive. Path uses forward
// slashes regardless of host OS, per the ZIP format.
type Entry struct {
	Path string
	Data []byte
}

// Writer produces an EPUB ZIP stream. Entries are written in call order;
// WriteMimetype must come first.
type Writer struct {
	zw      *zip.Writer
	entries int
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// WriteMimetype writes the mimetype entry, stored uncompressed. It must be
// the first write on this Writer.
func (w *Writer) WriteMimetype(data []byte) error {
	if w.entries != 0 {
		return ErrMimetypeNotFirst
	}
	return w.write(MimetypeName, data, zip.Store)
}

// WriteEntry appends a deflated entry. Calling it before WriteMimetype is an
// error: the ordering rule lives here, not in callers.
func (w *Writer) WriteEntry(e Entry) error {
	if w.entries == 0 {
		return ErrMimetypeNotFirst
	}
	return w.write(e.Path, e.Data, zip.Deflate)
}

// write creates an entry header by hand so no timestamps or OS metadata leak
// in. Two runs over identical content produce byte-identical archives.
func (w *Writer) write(path string, data []byte, method uint16) error {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   path,
		Method: method,
	})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", path, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", path, err)
	}
	w.entries++
	return nil
}

// Close flushes the central directory. The Writer is unusable afterwards.
func (w *Writer) Close() error {
	return w.zw.Close()
}
