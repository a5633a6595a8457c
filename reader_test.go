package pe

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/binparsergen/reader"
)

func testData() []byte {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func assertDecodeError(t *testing.T, err error, kind error, offset int64) *DecodeError {
	assert.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v got %v", kind, err)

	decode_err := &DecodeError{}
	assert.True(t, errors.As(err, &decode_err))
	assert.Equal(t, offset, decode_err.Offset)

	return decode_err
}

func testReadExact(t *testing.T, pe_reader Reader) {
	assert.Equal(t, int64(100), pe_reader.Size())

	data, err := pe_reader.ReadExact(10, 5)
	assert.NoError(t, err)
	assert.Equal(t, []byte{10, 11, 12, 13, 14}, data)

	// Reading right up to the end is fine.
	data, err = pe_reader.ReadExact(96, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{96, 97, 98, 99}, data)

	// Zero length reads are valid anywhere within the resource.
	data, err = pe_reader.ReadExact(100, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(data))

	// Straddling the end.
	_, err = pe_reader.ReadExact(98, 5)
	decode_err := assertDecodeError(t, err, ErrTruncated, 98)
	assert.Equal(t, 5, decode_err.Length)
	assert.Equal(t, 2, decode_err.Available)

	// Entirely past the end.
	_, err = pe_reader.ReadExact(500, 4)
	decode_err = assertDecodeError(t, err, ErrTruncated, 500)
	assert.Equal(t, 0, decode_err.Available)

	_, err = pe_reader.ReadExact(-1, 4)
	assertDecodeError(t, err, ErrSeekFailed, -1)
}

func TestPositionalReader(t *testing.T) {
	testReadExact(t, NewPositionalReader(bytes.NewReader(testData()), 100))
}

func TestSeekingReader(t *testing.T) {
	pe_reader, err := NewSeekingReader(bytes.NewReader(testData()))
	assert.NoError(t, err)

	testReadExact(t, pe_reader)
}

// A ReaderAt that claims more data than it has.
type shortReaderAt struct {
	data []byte
}

func (self shortReaderAt) ReadAt(buff []byte, off int64) (int, error) {
	if off >= int64(len(self.data)) {
		return 0, io.EOF
	}
	n := copy(buff, self.data[off:])
	if n < len(buff) {
		return n, io.EOF
	}
	return n, nil
}

func TestPositionalReaderShortRead(t *testing.T) {
	pe_reader := NewPositionalReader(shortReaderAt{data: testData()[:50]}, 100)

	_, err := pe_reader.ReadExact(40, 20)
	decode_err := assertDecodeError(t, err, ErrTruncated, 40)
	assert.Equal(t, 10, decode_err.Available)
	assert.Equal(t, io.ErrUnexpectedEOF, decode_err.Err)

	// Both the kind and the I/O error are reachable, also through
	// the decoder's wrapping.
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrTruncated))

	image := testPe32PlusImage().Build(t)
	_, err = ParseHeaders(NewPositionalReader(
		shortReaderAt{data: image[:0x50]}, int64(len(image))))
	assertDecodeError(t, err, ErrTruncated, 0x44)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrTruncated))
	assert.False(t, errors.Is(err, ErrSeekFailed))
}

// A stream that refuses to be positioned past limit.
type brokenSeeker struct {
	*bytes.Reader
	limit int64
	lie   bool
}

func (self *brokenSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekStart && offset > self.limit {
		if self.lie {
			return self.Reader.Seek(self.limit, io.SeekStart)
		}
		return 0, errors.New("device not seekable there")
	}
	return self.Reader.Seek(offset, whence)
}

func TestSeekingReaderSeekFailure(t *testing.T) {
	pe_reader, err := NewSeekingReader(&brokenSeeker{
		Reader: bytes.NewReader(testData()), limit: 50})
	assert.NoError(t, err)

	_, err = pe_reader.ReadExact(60, 4)
	decode_err := assertDecodeError(t, err, ErrSeekFailed, 60)
	assert.Contains(t, decode_err.Error(), "device not seekable there")

	// A seek that silently lands somewhere else is also a failure.
	pe_reader, err = NewSeekingReader(&brokenSeeker{
		Reader: bytes.NewReader(testData()), limit: 50, lie: true})
	assert.NoError(t, err)

	_, err = pe_reader.ReadExact(60, 4)
	assertDecodeError(t, err, ErrSeekFailed, 60)
}

func writeTempImage(t *testing.T, data []byte) string {
	path := filepath.Join(t.TempDir(), "image.exe")
	assert.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// Every backing must produce identical headers.
func TestReaderBackingsAgree(t *testing.T) {
	data := testPe32PlusImage().Build(t)
	path := writeTempImage(t, data)

	expected, err := parseBytes(data)
	assert.NoError(t, err)

	seeking, err := NewSeekingReader(bytes.NewReader(data))
	assert.NoError(t, err)
	headers, err := ParseHeaders(seeking)
	assert.NoError(t, err)
	assert.Equal(t, expected, headers)

	mapped, err := OpenMappedFile(path)
	assert.NoError(t, err)
	defer mapped.Close()

	headers, err = ParseHeaders(mapped)
	assert.NoError(t, err)
	assert.Equal(t, expected, headers)

	fd, err := os.Open(path)
	assert.NoError(t, err)
	defer fd.Close()

	file_reader, err := NewFileReader(fd)
	assert.NoError(t, err)
	headers, err = ParseHeaders(file_reader)
	assert.NoError(t, err)
	assert.Equal(t, expected, headers)

	paged, err := reader.NewPagedReader(fd, 4096, 100)
	assert.NoError(t, err)
	headers, err = ParseHeadersFromReaderAt(paged, int64(len(data)))
	assert.NoError(t, err)
	assert.Equal(t, expected, headers)

	headers, err = ParseFile(path)
	assert.NoError(t, err)
	assert.Equal(t, expected, headers)
}

func TestMappedEmptyFile(t *testing.T) {
	mapped, err := OpenMappedFile(writeTempImage(t, nil))
	assert.NoError(t, err)
	defer mapped.Close()

	_, err = ParseHeaders(mapped)
	assert.True(t, errors.Is(err, ErrNotAPEFile))
}

func TestSectionData(t *testing.T) {
	data := testData()
	section := SectionHeader{PointerToRawData: 90, SizeOfRawData: 8}

	view := section.Data(bytes.NewReader(data))
	assert.Equal(t, int64(8), view.Size())

	buff := make([]byte, 4)
	n, err := view.ReadAt(buff, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{90, 91, 92, 93}, buff)

	// Reads stop at the end of the section even though the file
	// has more data.
	n, err = view.ReadAt(buff, 6)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{96, 97}, buff[:n])

	_, err = view.ReadAt(buff, 8)
	assert.Equal(t, io.EOF, err)
}
