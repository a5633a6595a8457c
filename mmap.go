package pe

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// MappedFile is a read only memory mapping of an image on disk. It
// satisfies Reader through an embedded PositionalReader over the
// mapped bytes.
type MappedFile struct {
	*PositionalReader

	data mmap.MMap
	fd   *os.File
}

// OpenMappedFile maps the file at path. The mapping must be released
// with Close() once the caller is done with every Headers decoded
// from it.
func OpenMappedFile(path string) (*MappedFile, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "stat")
	}

	// An empty file can not be mapped but it is still a valid (if
	// useless) resource.
	if stat.Size() == 0 {
		return &MappedFile{
			PositionalReader: NewPositionalReader(bytes.NewReader(nil), 0),
			fd:               fd,
		}, nil
	}

	data, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "mapping %v", path)
	}

	DebugPrint("Mapped %v (%d bytes)\n", path, len(data))

	return &MappedFile{
		PositionalReader: NewPositionalReader(
			bytes.NewReader(data), int64(len(data))),
		data: data,
		fd:   fd,
	}, nil
}

func (self *MappedFile) Close() error {
	var err error
	if self.data != nil {
		err = self.data.Unmap()
		self.data = nil
	}

	close_err := self.fd.Close()
	if err == nil {
		err = close_err
	}
	return err
}
