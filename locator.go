package pe

import (
	"encoding/binary"
)

const (
	// The smallest resource that can hold the e_lfanew field of the
	// DOS stub.
	MIN_IMAGE_SIZE = 0x3F

	E_LFANEW_OFFSET = 0x3C

	// "PE\0\0" precedes the COFF header.
	PE_SIGNATURE_SIZE = 4
)

// LocateCoffHeader follows the DOS stub's e_lfanew pointer and returns
// the file offset of the COFF header. The signature in front of it is
// skipped but not checked, and the offset is not bounds checked - a
// bad pointer shows up as ErrTruncated on the next read.
func LocateCoffHeader(reader Reader) (int64, error) {
	if reader.Size() < MIN_IMAGE_SIZE {
		return 0, notAPEFile(MIN_IMAGE_SIZE)
	}

	data, err := reader.ReadExact(E_LFANEW_OFFSET, 4)
	if err != nil {
		return 0, err
	}

	offset := int64(binary.LittleEndian.Uint32(data)) + PE_SIGNATURE_SIZE
	DebugPrint("COFF header located at %#x\n", offset)

	return offset, nil
}
