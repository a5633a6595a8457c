package pe

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

const DATA_DIRECTORY_SIZE = 8

// DirectoryKind is the position of an entry in the data directory
// table. The position is what gives an entry its meaning.
type DirectoryKind int

const (
	IMAGE_DIRECTORY_ENTRY_EXPORT         DirectoryKind = 0
	IMAGE_DIRECTORY_ENTRY_IMPORT         DirectoryKind = 1
	IMAGE_DIRECTORY_ENTRY_RESOURCE       DirectoryKind = 2
	IMAGE_DIRECTORY_ENTRY_EXCEPTION      DirectoryKind = 3
	IMAGE_DIRECTORY_ENTRY_SECURITY       DirectoryKind = 4
	IMAGE_DIRECTORY_ENTRY_BASERELOC      DirectoryKind = 5
	IMAGE_DIRECTORY_ENTRY_DEBUG          DirectoryKind = 6
	IMAGE_DIRECTORY_ENTRY_ARCHITECTURE   DirectoryKind = 7
	IMAGE_DIRECTORY_ENTRY_GLOBALPTR      DirectoryKind = 8
	IMAGE_DIRECTORY_ENTRY_TLS            DirectoryKind = 9
	IMAGE_DIRECTORY_ENTRY_LOAD_CONFIG    DirectoryKind = 10
	IMAGE_DIRECTORY_ENTRY_BOUND_IMPORT   DirectoryKind = 11
	IMAGE_DIRECTORY_ENTRY_IAT            DirectoryKind = 12
	IMAGE_DIRECTORY_ENTRY_DELAY_IMPORT   DirectoryKind = 13
	IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR DirectoryKind = 14
	IMAGE_DIRECTORY_ENTRY_RESERVED       DirectoryKind = 15

	IMAGE_NUMBEROF_DIRECTORY_ENTRIES = 16
)

var directory_names = [IMAGE_NUMBEROF_DIRECTORY_ENTRIES]string{
	"Export Table",
	"Import Table",
	"Resource Table",
	"Exception Table",
	"Certificate Table",
	"Base Relocation Table",
	"Debug",
	"Architecture",
	"Global Ptr",
	"TLS Table",
	"Load Config Table",
	"Bound Import",
	"IAT",
	"Delay Import Descriptor",
	"CLR Runtime Header",
	"Reserved",
}

// Known is false for trailing entries beyond the 16 defined slots.
func (self DirectoryKind) Known() bool {
	return self >= 0 && self < IMAGE_NUMBEROF_DIRECTORY_ENTRIES
}

func (self DirectoryKind) String() string {
	if self.Known() {
		return directory_names[self]
	}
	return fmt.Sprintf("Table %d", int(self))
}

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// IsEmpty entries have no payload and must not be resolved.
func (self DataDirectory) IsEmpty() bool {
	return self.Size == 0
}

func (self DataDirectory) ToDict(kind DirectoryKind) *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Index", int(kind)).
		Set("Name", kind.String()).
		Set("VirtualAddress", self.VirtualAddress).
		Set("Size", self.Size)
}

// ParseDataDirectories reads count entries starting at offset. The
// count comes from the optional header and is trusted only as far as
// the reads succeed - the entries themselves are not validated.
func ParseDataDirectories(
	reader Reader, offset int64, count uint32) ([]DataDirectory, error) {
	DebugPrint("Reading %d data directories at %#x\n", count, offset)

	result := make([]DataDirectory, 0,
		CapUint32(count, GetDirectoryPreallocationLimit()))

	for i := uint32(0); i < count; i++ {
		data, err := reader.ReadExact(offset, DATA_DIRECTORY_SIZE)
		if err != nil {
			return nil, errors.Wrapf(err, "data directory %d", i)
		}

		decoder := NewFieldDecoder(data)
		result = append(result, DataDirectory{
			VirtualAddress: decoder.Uint32(),
			Size:           decoder.Uint32(),
		})

		offset += DATA_DIRECTORY_SIZE
	}

	return result, nil
}
