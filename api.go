package pe

import (
	"io"
	"os"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

// Exported API

// Section is a short summary of a section table entry.
type Section struct {
	Perm       string `json:"perm"`
	Name       string `json:"name"`
	FileOffset int64  `json:"file_offset"`
	VMA        int64  `json:"vma"`
	Size       int64  `json:"size"`
}

func (self *Headers) SectionSummaries() []*Section {
	result := []*Section{}
	for _, section := range self.sections {
		result = append(result, &Section{
			Perm:       section.Permissions(),
			Name:       section.NameString(),
			FileOffset: int64(section.PointerToRawData),
			VMA:        int64(section.VirtualAddress),
			Size:       int64(section.VirtualSize),
		})
	}
	return result
}

func (self *Headers) ToDict() *ordereddict.Dict {
	result := ordereddict.NewDict().
		Set("Shape", self.Shape().String()).
		Set("CoffHeaderOffset", self.coff_offset).
		Set("FileHeader", self.coff_header.ToDict())

	switch t := self.optional_header.(type) {
	case OptionalHeaderPe32:
		result.Set("OptionalHeader", t.ToDict())
	case OptionalHeaderPe32Plus:
		result.Set("OptionalHeader", t.ToDict())
	}

	if self.data_directories != nil {
		directories := []*ordereddict.Dict{}
		for i, dir := range self.data_directories {
			directories = append(directories, dir.ToDict(DirectoryKind(i)))
		}
		result.Set("DataDirectories", directories)
	}

	sections := []*ordereddict.Dict{}
	for _, section := range self.sections {
		sections = append(sections, section.ToDict())
	}
	result.Set("Sections", sections)

	return result
}

func (self *Headers) MarshalJSON() ([]byte, error) {
	return self.ToDict().MarshalJSON()
}

// ParseHeadersFromReaderAt is a shortcut for an io.ReaderAt of known
// size.
func ParseHeadersFromReaderAt(reader io.ReaderAt, size int64) (*Headers, error) {
	return ParseHeaders(NewPositionalReader(reader, size))
}

// ParseFile opens path, decodes its headers and closes it again.
func ParseFile(path string) (*Headers, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	reader, err := NewFileReader(fd)
	if err != nil {
		return nil, err
	}

	headers, err := ParseHeaders(reader)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return headers, nil
}
