package pe

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// A Reader gives exact sized, absolutely addressed access to an
// image. All the decoders are written against this interface only -
// whether the backing resource seeks and reads in one call or in two
// is hidden behind it.
type Reader interface {
	// ReadExact returns exactly length bytes starting at
	// offset. It fails with ErrTruncated if fewer bytes are
	// available and with ErrSeekFailed if the resource can not be
	// positioned at offset.
	ReadExact(offset int64, length int) ([]byte, error)

	// Size of the underlying resource in bytes.
	Size() int64
}

func checkRange(offset int64, length int) error {
	if offset < 0 || length < 0 || offset > math.MaxInt64-int64(length) {
		return seekFailed(offset, length, nil)
	}
	return nil
}

// PositionalReader reads from an io.ReaderAt where seeking and
// reading are a single operation. It holds no position state so it
// is safe to share between goroutines if the io.ReaderAt is.
type PositionalReader struct {
	reader io.ReaderAt
	size   int64
}

func (self *PositionalReader) Size() int64 {
	return self.size
}

func (self *PositionalReader) ReadExact(offset int64, length int) ([]byte, error) {
	err := checkRange(offset, length)
	if err != nil {
		return nil, err
	}

	// Do not bother allocating a buffer we know can not be filled.
	if offset+int64(length) > self.size {
		available := self.size - offset
		if available < 0 {
			available = 0
		}
		return nil, truncated(offset, length, int(available), nil)
	}

	buff := make([]byte, length)
	n, err := self.reader.ReadAt(buff, offset)

	// ReadAt may return io.EOF together with a full buffer.
	if n == length {
		return buff, nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, truncated(offset, length, n, err)
}

func NewPositionalReader(reader io.ReaderAt, size int64) *PositionalReader {
	return &PositionalReader{
		reader: reader,
		size:   size,
	}
}

// NewFileReader wraps an open file. The caller still owns the file
// and must close it.
func NewFileReader(fd *os.File) (*PositionalReader, error) {
	stat, err := fd.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	return NewPositionalReader(fd, stat.Size()), nil
}

// SeekingReader reads from an io.ReadSeeker by seeking first and then
// reading. The underlying stream carries a cursor, so a SeekingReader
// must not be used from more than one goroutine at a time.
type SeekingReader struct {
	reader io.ReadSeeker
	size   int64
}

func (self *SeekingReader) Size() int64 {
	return self.size
}

func (self *SeekingReader) ReadExact(offset int64, length int) ([]byte, error) {
	err := checkRange(offset, length)
	if err != nil {
		return nil, err
	}

	pos, err := self.reader.Seek(offset, io.SeekStart)
	if err != nil {
		return nil, seekFailed(offset, length, err)
	}

	if pos != offset {
		return nil, seekFailed(offset, length, errors.Errorf(
			"seek landed at %#x", pos))
	}

	buff := make([]byte, length)
	n, err := io.ReadFull(self.reader, buff)
	if err != nil {
		return nil, truncated(offset, length, n, err)
	}

	return buff, nil
}

// NewSeekingReader finds the size of the stream by seeking to its
// end. No position is assumed afterwards since every read seeks
// first.
func NewSeekingReader(reader io.ReadSeeker) (*SeekingReader, error) {
	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, seekFailed(0, 0, err)
	}

	return &SeekingReader{
		reader: reader,
		size:   size,
	}, nil
}

// OffsetReader is a window over another reader - offsets are relative
// to the start of the window and reads stop at its end.
type OffsetReader struct {
	reader io.ReaderAt
	offset int64
	length int64
}

func (self OffsetReader) ReadAt(buff []byte, off int64) (int, error) {
	if off < 0 || off >= self.length {
		return 0, io.EOF
	}

	to_read := int64(len(buff))
	if off+to_read > self.length {
		to_read = self.length - off
	}

	n, err := self.reader.ReadAt(buff[:to_read], off+self.offset)
	if err == nil && to_read < int64(len(buff)) {
		err = io.EOF
	}
	return n, err
}

func (self OffsetReader) Size() int64 {
	return self.length
}
