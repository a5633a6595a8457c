package pe

import (
	"bytes"
	"io"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const SECTION_HEADER_SIZE = 40

type SectionCharacteristics uint32

const (
	IMAGE_SCN_TYPE_NO_PAD            SectionCharacteristics = 0x00000008
	IMAGE_SCN_CNT_CODE               SectionCharacteristics = 0x00000020
	IMAGE_SCN_CNT_INITIALIZED_DATA   SectionCharacteristics = 0x00000040
	IMAGE_SCN_CNT_UNINITIALIZED_DATA SectionCharacteristics = 0x00000080
	IMAGE_SCN_LNK_OTHER              SectionCharacteristics = 0x00000100
	IMAGE_SCN_LNK_INFO               SectionCharacteristics = 0x00000200
	IMAGE_SCN_LNK_REMOVE             SectionCharacteristics = 0x00000800
	IMAGE_SCN_LNK_COMDAT             SectionCharacteristics = 0x00001000
	IMAGE_SCN_GPREL                  SectionCharacteristics = 0x00008000
	IMAGE_SCN_MEM_16BIT              SectionCharacteristics = 0x00020000
	IMAGE_SCN_MEM_LOCKED             SectionCharacteristics = 0x00040000
	IMAGE_SCN_MEM_PRELOAD            SectionCharacteristics = 0x00080000
	IMAGE_SCN_LNK_NRELOC_OVFL        SectionCharacteristics = 0x01000000
	IMAGE_SCN_MEM_DISCARDABLE        SectionCharacteristics = 0x02000000
	IMAGE_SCN_MEM_NOT_CACHED         SectionCharacteristics = 0x04000000
	IMAGE_SCN_MEM_NOT_PAGED          SectionCharacteristics = 0x08000000
	IMAGE_SCN_MEM_SHARED             SectionCharacteristics = 0x10000000
	IMAGE_SCN_MEM_EXECUTE            SectionCharacteristics = 0x20000000
	IMAGE_SCN_MEM_READ               SectionCharacteristics = 0x40000000
	IMAGE_SCN_MEM_WRITE              SectionCharacteristics = 0x80000000

	// Bits 20-23 hold an alignment value, not independent flags.
	IMAGE_SCN_ALIGN_MASK SectionCharacteristics = 0x00F00000
)

var section_characteristics = []flagName{
	{uint32(IMAGE_SCN_TYPE_NO_PAD), "TypeNoPad"},
	{uint32(IMAGE_SCN_CNT_CODE), "CntCode"},
	{uint32(IMAGE_SCN_CNT_INITIALIZED_DATA), "CntInitializedData"},
	{uint32(IMAGE_SCN_CNT_UNINITIALIZED_DATA), "CntUninitializedData"},
	{uint32(IMAGE_SCN_LNK_OTHER), "LnkOther"},
	{uint32(IMAGE_SCN_LNK_INFO), "LnkInfo"},
	{uint32(IMAGE_SCN_LNK_REMOVE), "LnkRemove"},
	{uint32(IMAGE_SCN_LNK_COMDAT), "LnkComdat"},
	{uint32(IMAGE_SCN_GPREL), "Gprel"},
	{uint32(IMAGE_SCN_MEM_16BIT), "Mem16Bit"},
	{uint32(IMAGE_SCN_MEM_LOCKED), "MemLocked"},
	{uint32(IMAGE_SCN_MEM_PRELOAD), "MemPreload"},
	{uint32(IMAGE_SCN_LNK_NRELOC_OVFL), "LnkNrelocOvfl"},
	{uint32(IMAGE_SCN_MEM_DISCARDABLE), "MemDiscardable"},
	{uint32(IMAGE_SCN_MEM_NOT_CACHED), "MemNotCached"},
	{uint32(IMAGE_SCN_MEM_NOT_PAGED), "MemNotPaged"},
	{uint32(IMAGE_SCN_MEM_SHARED), "MemShared"},
	{uint32(IMAGE_SCN_MEM_EXECUTE), "MemExecute"},
	{uint32(IMAGE_SCN_MEM_READ), "MemRead"},
	{uint32(IMAGE_SCN_MEM_WRITE), "MemWrite"},
}

func (self SectionCharacteristics) Has(flag SectionCharacteristics) bool {
	return self&flag == flag
}

func (self SectionCharacteristics) Names() []string {
	return flagNames(uint32(self), section_characteristics)
}

// Unknown bits, not counting the alignment field.
func (self SectionCharacteristics) Unknown() SectionCharacteristics {
	return SectionCharacteristics(unknownBits(
		uint32(self&^IMAGE_SCN_ALIGN_MASK), section_characteristics))
}

// Alignment in bytes encoded in bits 20-23 (1 to 8192), or 0 if
// unset. The value 0xF is not defined and also gives 0.
func (self SectionCharacteristics) Alignment() uint32 {
	value := uint32(self&IMAGE_SCN_ALIGN_MASK) >> 20
	if value == 0 || value == 0xF {
		return 0
	}
	return 1 << (value - 1)
}

type SectionHeader struct {
	// Not necessarily NUL terminated - a name may use all 8 bytes.
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      SectionCharacteristics
}

// NameString decodes the raw name up to the first NUL. Names are
// single byte ANSI text so we decode them as Windows-1252.
func (self SectionHeader) NameString() string {
	name := self.Name[:]
	idx := bytes.IndexByte(name, 0)
	if idx >= 0 {
		name = name[:idx]
	}

	result, err := charmap.Windows1252.NewDecoder().Bytes(name)
	if err != nil {
		return string(name)
	}
	return string(result)
}

func (self SectionHeader) Permissions() string {
	characteristics := self.Characteristics

	result := ""
	if characteristics.Has(IMAGE_SCN_MEM_EXECUTE) {
		result += "x"
	} else {
		result += "-"
	}

	if characteristics.Has(IMAGE_SCN_MEM_READ) {
		result += "r"
	} else {
		result += "-"
	}

	if characteristics.Has(IMAGE_SCN_MEM_WRITE) {
		result += "w"
	} else {
		result += "-"
	}

	return result
}

// Data gives access to the section's raw bytes in the image read by
// reader. Offsets are relative to the start of the section.
func (self SectionHeader) Data(reader io.ReaderAt) OffsetReader {
	return OffsetReader{
		reader: reader,
		offset: int64(self.PointerToRawData),
		length: int64(self.SizeOfRawData),
	}
}

func (self SectionHeader) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Name", self.NameString()).
		Set("Perm", self.Permissions()).
		Set("VirtualSize", self.VirtualSize).
		Set("VirtualAddress", self.VirtualAddress).
		Set("SizeOfRawData", self.SizeOfRawData).
		Set("PointerToRawData", self.PointerToRawData).
		Set("PointerToRelocations", self.PointerToRelocations).
		Set("PointerToLinenumbers", self.PointerToLinenumbers).
		Set("NumberOfRelocations", self.NumberOfRelocations).
		Set("NumberOfLinenumbers", self.NumberOfLinenumbers).
		Set("Characteristics", self.Characteristics.Names()).
		Set("Alignment", self.Characteristics.Alignment()).
		Set("CharacteristicsRaw", uint32(self.Characteristics))
}

// SectionTableOffset is where the section table starts: right after
// the declared optional header. The declared size may be larger than
// the span we decode and the extra bytes are skipped.
func SectionTableOffset(coff_offset int64, coff_header CoffHeader) int64 {
	return coff_offset + COFF_HEADER_SIZE +
		int64(coff_header.SizeOfOptionalHeader)
}

// ParseSectionTable reads all NumberOfSections entries in one read.
func ParseSectionTable(
	reader Reader, coff_offset int64,
	coff_header CoffHeader) ([]SectionHeader, error) {
	offset := SectionTableOffset(coff_offset, coff_header)
	count := int(coff_header.NumberOfSections)

	DebugPrint("Reading %d section headers at %#x\n", count, offset)

	result := make([]SectionHeader, 0, count)
	if count == 0 {
		return result, nil
	}

	data, err := reader.ReadExact(offset, count*SECTION_HEADER_SIZE)
	if err != nil {
		return nil, errors.Wrap(err, "section table")
	}

	decoder := NewFieldDecoder(data)
	for i := 0; i < count; i++ {
		section := SectionHeader{}
		decoder.Bytes(section.Name[:])
		section.VirtualSize = decoder.Uint32()
		section.VirtualAddress = decoder.Uint32()
		section.SizeOfRawData = decoder.Uint32()
		section.PointerToRawData = decoder.Uint32()
		section.PointerToRelocations = decoder.Uint32()
		section.PointerToLinenumbers = decoder.Uint32()
		section.NumberOfRelocations = decoder.Uint16()
		section.NumberOfLinenumbers = decoder.Uint16()
		section.Characteristics = SectionCharacteristics(decoder.Uint32())

		result = append(result, section)
	}

	return result, nil
}
