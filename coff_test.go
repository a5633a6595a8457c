package pe

import (
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestMachineTypes(t *testing.T) {
	assert.True(t, IMAGE_FILE_MACHINE_AMD64.Known())
	assert.Equal(t, "AMD64", IMAGE_FILE_MACHINE_AMD64.Name())
	assert.Equal(t, "x64", IMAGE_FILE_MACHINE_AMD64.Description())
	assert.Equal(t, "I386", IMAGE_FILE_MACHINE_I386.String())

	unknown := MachineType(0x1234)
	assert.False(t, unknown.Known())
	assert.Equal(t, "0x1234", unknown.Name())
	assert.Equal(t, "Unrecognized machine type", unknown.Description())
}

func TestCoffCharacteristics(t *testing.T) {
	characteristics := IMAGE_FILE_EXECUTABLE_IMAGE | IMAGE_FILE_DLL |
		CoffCharacteristics(0x0040)

	assert.True(t, characteristics.Has(IMAGE_FILE_DLL))
	assert.False(t, characteristics.Has(IMAGE_FILE_SYSTEM))
	assert.Equal(t, []string{"ExecutableImage", "Dll"}, characteristics.Names())
	assert.Equal(t, CoffCharacteristics(0x0040), characteristics.Unknown())
}

func TestTimeDateStamp(t *testing.T) {
	stamp := TimeDateStamp(0x5FEE6600)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), stamp.Time())
	assert.Equal(t, "2021-01-01T00:00:00Z", stamp.String())
}

func TestParseCoffHeader(t *testing.T) {
	image := testPe32PlusImage()
	data := image.Build(t)

	pe_reader := NewPositionalReader(bytesReader(data), int64(len(data)))
	offset, err := LocateCoffHeader(pe_reader)
	assert.NoError(t, err)
	assert.Equal(t, int64(0x44), offset)

	coff_header, err := ParseCoffHeader(pe_reader, offset)
	assert.NoError(t, err)
	assert.Equal(t, image.coff_header, coff_header)
	assert.False(t, coff_header.IsDLL())

	// Reading the COFF header at the wrong place still decodes
	// something, but it is garbage.
	coff_header, err = ParseCoffHeader(pe_reader, 0)
	assert.NoError(t, err)
	assert.Equal(t, MachineType(0x5a4d), coff_header.Machine)
}
