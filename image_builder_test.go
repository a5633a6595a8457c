package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/alecthomas/assert"
)

// testImage describes a synthetic image. Build() lays it out the way a
// linker would: DOS stub, signature, COFF header, optional header with
// its directories (padded to the declared SizeOfOptionalHeader), and
// the section table.
type testImage struct {
	// Defaults to 0x40 - right after the DOS stub.
	e_lfanew uint32

	coff_header CoffHeader

	// nil, OptionalHeaderPe32 or OptionalHeaderPe32Plus
	optional_header OptionalHeader
	directories     []DataDirectory

	sections []SectionHeader

	// Appended after the section table.
	trailing []byte
}

func (self *testImage) coffOffset() int64 {
	if self.e_lfanew == 0 {
		self.e_lfanew = 0x40
	}
	return int64(self.e_lfanew) + PE_SIGNATURE_SIZE
}

func (self *testImage) Build(t *testing.T) []byte {
	self.coffOffset()

	buf := &bytes.Buffer{}
	stub := make([]byte, self.e_lfanew)
	copy(stub, "MZ")
	binary.LittleEndian.PutUint32(stub[E_LFANEW_OFFSET:], self.e_lfanew)
	buf.Write(stub)
	buf.WriteString("PE\x00\x00")

	write := func(v interface{}) {
		assert.NoError(t, binary.Write(buf, binary.LittleEndian, v))
	}

	write(self.coff_header)

	optional_start := buf.Len()
	switch h := self.optional_header.(type) {
	case OptionalHeaderPe32:
		write(h.Standard)
		write(h.Windows)
	case OptionalHeaderPe32Plus:
		write(h.Standard)
		write(h.Windows)
	}
	for _, dir := range self.directories {
		write(dir)
	}

	// Vendor space up to the declared size.
	declared := int(self.coff_header.SizeOfOptionalHeader)
	for buf.Len()-optional_start < declared {
		buf.WriteByte(0xCC)
	}

	for _, section := range self.sections {
		write(section)
	}
	buf.Write(self.trailing)

	return buf.Bytes()
}

func sectionName(name string) [8]byte {
	result := [8]byte{}
	copy(result[:], name)
	return result
}

func testPe32Header(directories uint32) OptionalHeaderPe32 {
	return OptionalHeaderPe32{
		Standard: StandardFieldsPe32{
			Magic:                   IMAGE_NT_OPTIONAL_HDR32_MAGIC,
			MajorLinkerVersion:      14,
			MinorLinkerVersion:      29,
			SizeOfCode:              0x1200,
			SizeOfInitializedData:   0x800,
			SizeOfUninitializedData: 0x10,
			AddressOfEntryPoint:     0x1050,
			BaseOfCode:              0x1000,
			BaseOfData:              0x2000,
		},
		Windows: WindowsFieldsPe32{
			ImageBase:                   0x400000,
			SectionAlignment:            0x1000,
			FileAlignment:               0x200,
			MajorOperatingSystemVersion: 6,
			MinorOperatingSystemVersion: 1,
			MajorImageVersion:           2,
			MinorImageVersion:           3,
			MajorSubsystemVersion:       6,
			MinorSubsystemVersion:       2,
			Win32VersionValue:           0,
			SizeOfImage:                 0x3000,
			SizeOfHeaders:               0x400,
			CheckSum:                    0xdeadbeef,
			Subsystem:                   IMAGE_SUBSYSTEM_WINDOWS_CUI,
			DllCharacteristics: IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE |
				IMAGE_DLLCHARACTERISTICS_NX_COMPAT,
			SizeOfStackReserve:  0x100000,
			SizeOfStackCommit:   0x1000,
			SizeOfHeapReserve:   0x100000,
			SizeOfHeapCommit:    0x1000,
			LoaderFlags:         0,
			NumberOfRvaAndSizes: directories,
		},
	}
}

func testPe32PlusHeader(directories uint32) OptionalHeaderPe32Plus {
	return OptionalHeaderPe32Plus{
		Standard: StandardFieldsPe32Plus{
			Magic:                   IMAGE_NT_OPTIONAL_HDR64_MAGIC,
			MajorLinkerVersion:      14,
			MinorLinkerVersion:      36,
			SizeOfCode:              0x200,
			SizeOfInitializedData:   0x400,
			SizeOfUninitializedData: 0,
			AddressOfEntryPoint:     0x1010,
			BaseOfCode:              0x1000,
		},
		Windows: WindowsFieldsPe32Plus{
			ImageBase:                   0x140000000,
			SectionAlignment:            0x1000,
			FileAlignment:               0x200,
			MajorOperatingSystemVersion: 10,
			MinorOperatingSystemVersion: 0,
			MajorImageVersion:           0,
			MinorImageVersion:           0,
			MajorSubsystemVersion:       10,
			MinorSubsystemVersion:       0,
			Win32VersionValue:           0,
			SizeOfImage:                 0x3000,
			SizeOfHeaders:               0x400,
			CheckSum:                    0,
			Subsystem:                   IMAGE_SUBSYSTEM_WINDOWS_GUI,
			DllCharacteristics: IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA |
				IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE |
				IMAGE_DLLCHARACTERISTICS_NX_COMPAT,
			SizeOfStackReserve:  0x100000,
			SizeOfStackCommit:   0x1000,
			SizeOfHeapReserve:   0x100000,
			SizeOfHeapCommit:    0x1000,
			LoaderFlags:         0,
			NumberOfRvaAndSizes: directories,
		},
	}
}

func testSections() []SectionHeader {
	return []SectionHeader{{
		Name:             sectionName(".text"),
		VirtualSize:      0x200,
		VirtualAddress:   0x1000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x400,
		Characteristics: IMAGE_SCN_CNT_CODE | IMAGE_SCN_MEM_EXECUTE |
			IMAGE_SCN_MEM_READ,
	}, {
		Name:             sectionName(".data"),
		VirtualSize:      0x100,
		VirtualAddress:   0x2000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x800,
		Characteristics: IMAGE_SCN_CNT_INITIALIZED_DATA |
			IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_WRITE,
	}}
}

// A typical PE32+ executable with two sections and the standard 16
// directories.
func testPe32PlusImage() *testImage {
	directories := make([]DataDirectory, IMAGE_NUMBEROF_DIRECTORY_ENTRIES)
	directories[IMAGE_DIRECTORY_ENTRY_IMPORT] = DataDirectory{
		VirtualAddress: 0x2010, Size: 0x28}

	return &testImage{
		coff_header: CoffHeader{
			Machine:              IMAGE_FILE_MACHINE_AMD64,
			NumberOfSections:     2,
			TimeDateStamp:        0x5FEE6600,
			SizeOfOptionalHeader: OPTIONAL_HEADER64_SIZE + 16*DATA_DIRECTORY_SIZE,
			Characteristics: IMAGE_FILE_EXECUTABLE_IMAGE |
				IMAGE_FILE_LARGE_ADDRESS_AWARE,
		},
		optional_header: testPe32PlusHeader(16),
		directories:     directories,
		sections:        testSections(),
	}
}

func testPe32Image() *testImage {
	directories := make([]DataDirectory, IMAGE_NUMBEROF_DIRECTORY_ENTRIES)
	directories[IMAGE_DIRECTORY_ENTRY_EXPORT] = DataDirectory{
		VirtualAddress: 0x2000, Size: 0x40}

	return &testImage{
		e_lfanew: 0x80,
		coff_header: CoffHeader{
			Machine:              IMAGE_FILE_MACHINE_I386,
			NumberOfSections:     2,
			TimeDateStamp:        0x4A5BC2E1,
			SizeOfOptionalHeader: OPTIONAL_HEADER32_SIZE + 16*DATA_DIRECTORY_SIZE,
			Characteristics: IMAGE_FILE_EXECUTABLE_IMAGE |
				IMAGE_FILE_32BIT_MACHINE | IMAGE_FILE_DLL,
		},
		optional_header: testPe32Header(16),
		directories:     directories,
		sections:        testSections(),
	}
}

func testCoffImage() *testImage {
	return &testImage{
		coff_header: CoffHeader{
			Machine:              IMAGE_FILE_MACHINE_ARM64,
			NumberOfSections:     1,
			PointerToSymbolTable: 0x200,
			NumberOfSymbols:      12,
		},
		sections: testSections()[:1],
	}
}

func parseBytes(data []byte) (*Headers, error) {
	return ParseHeaders(NewPositionalReader(bytes.NewReader(data), int64(len(data))))
}
