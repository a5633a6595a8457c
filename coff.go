package pe

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

const COFF_HEADER_SIZE = 20

// MachineType is the target architecture. New machine types appear
// over time, so codes missing from the table below are kept as is.
type MachineType uint16

const (
	IMAGE_FILE_MACHINE_UNKNOWN     MachineType = 0x0
	IMAGE_FILE_MACHINE_ALPHA       MachineType = 0x184
	IMAGE_FILE_MACHINE_ALPHA64     MachineType = 0x284
	IMAGE_FILE_MACHINE_AM33        MachineType = 0x1d3
	IMAGE_FILE_MACHINE_AMD64       MachineType = 0x8664
	IMAGE_FILE_MACHINE_ARM         MachineType = 0x1c0
	IMAGE_FILE_MACHINE_ARM64       MachineType = 0xaa64
	IMAGE_FILE_MACHINE_ARMNT       MachineType = 0x1c4
	IMAGE_FILE_MACHINE_EBC         MachineType = 0xebc
	IMAGE_FILE_MACHINE_I386        MachineType = 0x14c
	IMAGE_FILE_MACHINE_IA64        MachineType = 0x200
	IMAGE_FILE_MACHINE_LOONGARCH32 MachineType = 0x6232
	IMAGE_FILE_MACHINE_LOONGARCH64 MachineType = 0x6264
	IMAGE_FILE_MACHINE_M32R        MachineType = 0x9041
	IMAGE_FILE_MACHINE_MIPS16      MachineType = 0x266
	IMAGE_FILE_MACHINE_MIPSFPU     MachineType = 0x366
	IMAGE_FILE_MACHINE_MIPSFPU16   MachineType = 0x466
	IMAGE_FILE_MACHINE_POWERPC     MachineType = 0x1f0
	IMAGE_FILE_MACHINE_POWERPCFP   MachineType = 0x1f1
	IMAGE_FILE_MACHINE_R4000       MachineType = 0x166
	IMAGE_FILE_MACHINE_RISCV32     MachineType = 0x5032
	IMAGE_FILE_MACHINE_RISCV64     MachineType = 0x5064
	IMAGE_FILE_MACHINE_RISCV128    MachineType = 0x5128
	IMAGE_FILE_MACHINE_SH3         MachineType = 0x1a2
	IMAGE_FILE_MACHINE_SH3DSP      MachineType = 0x1a3
	IMAGE_FILE_MACHINE_SH4         MachineType = 0x1a6
	IMAGE_FILE_MACHINE_SH5         MachineType = 0x1a8
	IMAGE_FILE_MACHINE_THUMB       MachineType = 0x1c2
	IMAGE_FILE_MACHINE_WCEMIPSV2   MachineType = 0x169
)

type enumName struct {
	name        string
	description string
}

var machine_types = map[MachineType]enumName{
	IMAGE_FILE_MACHINE_UNKNOWN:     {"Unknown", "Unknown/Any"},
	IMAGE_FILE_MACHINE_ALPHA:       {"Alpha", "Alpha AXP 32-bit"},
	IMAGE_FILE_MACHINE_ALPHA64:     {"Alpha64", "Alpha AXP 64-bit"},
	IMAGE_FILE_MACHINE_AM33:        {"AM33", "Matsushita AM33"},
	IMAGE_FILE_MACHINE_AMD64:       {"AMD64", "x64"},
	IMAGE_FILE_MACHINE_ARM:         {"ARM", "ARM little endian"},
	IMAGE_FILE_MACHINE_ARM64:       {"ARM64", "ARM64 little endian"},
	IMAGE_FILE_MACHINE_ARMNT:       {"ARMNT", "ARM Thumb-2 little endian"},
	IMAGE_FILE_MACHINE_EBC:         {"EBC", "EFI byte code"},
	IMAGE_FILE_MACHINE_I386:        {"I386", "Intel 386 or later/compatible processors"},
	IMAGE_FILE_MACHINE_IA64:        {"IA64", "Intel Itanium processor family"},
	IMAGE_FILE_MACHINE_LOONGARCH32: {"LoongArch32", "LoongArch 32-bit processor family"},
	IMAGE_FILE_MACHINE_LOONGARCH64: {"LoongArch64", "LoongArch 64-bit processor family"},
	IMAGE_FILE_MACHINE_M32R:        {"M32R", "Mitsubishi M32R little endian"},
	IMAGE_FILE_MACHINE_MIPS16:      {"MIPS16", "MIPS16"},
	IMAGE_FILE_MACHINE_MIPSFPU:     {"MIPSFPU", "MIPS with FPU"},
	IMAGE_FILE_MACHINE_MIPSFPU16:   {"MIPSFPU16", "MIPS16 with FPU"},
	IMAGE_FILE_MACHINE_POWERPC:     {"PowerPC", "Power PC little endian"},
	IMAGE_FILE_MACHINE_POWERPCFP:   {"PowerPCFP", "Power PC with floating point support"},
	IMAGE_FILE_MACHINE_R4000:       {"R4000", "MIPS little endian"},
	IMAGE_FILE_MACHINE_RISCV32:     {"RISCV32", "RISC-V 32-bit"},
	IMAGE_FILE_MACHINE_RISCV64:     {"RISCV64", "RISC-V 64-bit"},
	IMAGE_FILE_MACHINE_RISCV128:    {"RISCV128", "RISC-V 128-bit"},
	IMAGE_FILE_MACHINE_SH3:         {"SH3", "Hitachi SH3"},
	IMAGE_FILE_MACHINE_SH3DSP:      {"SH3DSP", "Hitachi SH3 DSP"},
	IMAGE_FILE_MACHINE_SH4:         {"SH4", "Hitachi SH4"},
	IMAGE_FILE_MACHINE_SH5:         {"SH5", "Hitachi SH5"},
	IMAGE_FILE_MACHINE_THUMB:       {"Thumb", "Thumb"},
	IMAGE_FILE_MACHINE_WCEMIPSV2:   {"WCEMIPSV2", "MIPS little-endian WCE v2"},
}

func (self MachineType) Known() bool {
	_, pres := machine_types[self]
	return pres
}

func (self MachineType) Name() string {
	info, pres := machine_types[self]
	if !pres {
		return fmt.Sprintf("%#04x", uint16(self))
	}
	return info.name
}

func (self MachineType) Description() string {
	info, pres := machine_types[self]
	if !pres {
		return "Unrecognized machine type"
	}
	return info.description
}

func (self MachineType) String() string {
	return self.Name()
}

// CoffCharacteristics is the bit set in the COFF header. Bits without
// a name are kept.
type CoffCharacteristics uint16

const (
	IMAGE_FILE_RELOCS_STRIPPED         CoffCharacteristics = 0x0001
	IMAGE_FILE_EXECUTABLE_IMAGE        CoffCharacteristics = 0x0002
	IMAGE_FILE_LINE_NUMS_STRIPPED      CoffCharacteristics = 0x0004
	IMAGE_FILE_LOCAL_SYMS_STRIPPED     CoffCharacteristics = 0x0008
	IMAGE_FILE_AGGRESSIVE_WS_TRIM      CoffCharacteristics = 0x0010
	IMAGE_FILE_LARGE_ADDRESS_AWARE     CoffCharacteristics = 0x0020
	IMAGE_FILE_BYTES_REVERSED_LO       CoffCharacteristics = 0x0080
	IMAGE_FILE_32BIT_MACHINE           CoffCharacteristics = 0x0100
	IMAGE_FILE_DEBUG_STRIPPED          CoffCharacteristics = 0x0200
	IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP CoffCharacteristics = 0x0400
	IMAGE_FILE_NET_RUN_FROM_SWAP       CoffCharacteristics = 0x0800
	IMAGE_FILE_SYSTEM                  CoffCharacteristics = 0x1000
	IMAGE_FILE_DLL                     CoffCharacteristics = 0x2000
	IMAGE_FILE_UP_SYSTEM_ONLY          CoffCharacteristics = 0x4000
	IMAGE_FILE_BYTES_REVERSED_HI       CoffCharacteristics = 0x8000
)

var coff_characteristics = []flagName{
	{uint32(IMAGE_FILE_RELOCS_STRIPPED), "RelocsStripped"},
	{uint32(IMAGE_FILE_EXECUTABLE_IMAGE), "ExecutableImage"},
	{uint32(IMAGE_FILE_LINE_NUMS_STRIPPED), "LineNumsStripped"},
	{uint32(IMAGE_FILE_LOCAL_SYMS_STRIPPED), "LocalSymsStripped"},
	{uint32(IMAGE_FILE_AGGRESSIVE_WS_TRIM), "AggressiveWsTrim"},
	{uint32(IMAGE_FILE_LARGE_ADDRESS_AWARE), "LargeAddressAware"},
	{uint32(IMAGE_FILE_BYTES_REVERSED_LO), "BytesReversedLo"},
	{uint32(IMAGE_FILE_32BIT_MACHINE), "Machine32Bit"},
	{uint32(IMAGE_FILE_DEBUG_STRIPPED), "DebugStripped"},
	{uint32(IMAGE_FILE_REMOVABLE_RUN_FROM_SWAP), "RemovableRunFromSwap"},
	{uint32(IMAGE_FILE_NET_RUN_FROM_SWAP), "NetRunFromSwap"},
	{uint32(IMAGE_FILE_SYSTEM), "System"},
	{uint32(IMAGE_FILE_DLL), "Dll"},
	{uint32(IMAGE_FILE_UP_SYSTEM_ONLY), "UpSystemOnly"},
	{uint32(IMAGE_FILE_BYTES_REVERSED_HI), "BytesReversedHi"},
}

func (self CoffCharacteristics) Has(flag CoffCharacteristics) bool {
	return self&flag == flag
}

func (self CoffCharacteristics) Names() []string {
	return flagNames(uint32(self), coff_characteristics)
}

func (self CoffCharacteristics) Unknown() CoffCharacteristics {
	return CoffCharacteristics(unknownBits(uint32(self), coff_characteristics))
}

type CoffHeader struct {
	Machine              MachineType
	NumberOfSections     uint16
	TimeDateStamp        TimeDateStamp
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      CoffCharacteristics
}

func (self CoffHeader) IsDLL() bool {
	return self.Characteristics.Has(IMAGE_FILE_DLL)
}

func (self CoffHeader) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Machine", self.Machine.Name()).
		Set("MachineCode", uint16(self.Machine)).
		Set("MachineDescription", self.Machine.Description()).
		Set("NumberOfSections", self.NumberOfSections).
		Set("TimeDateStamp", self.TimeDateStamp.String()).
		Set("TimeDateStampRaw", uint32(self.TimeDateStamp)).
		Set("PointerToSymbolTable", self.PointerToSymbolTable).
		Set("NumberOfSymbols", self.NumberOfSymbols).
		Set("SizeOfOptionalHeader", self.SizeOfOptionalHeader).
		Set("Characteristics", self.Characteristics.Names()).
		Set("CharacteristicsRaw", uint16(self.Characteristics))
}

// ParseCoffHeader decodes the 20 byte COFF header at offset.
func ParseCoffHeader(reader Reader, offset int64) (CoffHeader, error) {
	data, err := reader.ReadExact(offset, COFF_HEADER_SIZE)
	if err != nil {
		return CoffHeader{}, errors.Wrap(err, "COFF header")
	}

	decoder := NewFieldDecoder(data)
	result := CoffHeader{
		Machine:              MachineType(decoder.Uint16()),
		NumberOfSections:     decoder.Uint16(),
		TimeDateStamp:        TimeDateStamp(decoder.Uint32()),
		PointerToSymbolTable: decoder.Uint32(),
		NumberOfSymbols:      decoder.Uint32(),
		SizeOfOptionalHeader: decoder.Uint16(),
		Characteristics:      CoffCharacteristics(decoder.Uint16()),
	}

	DebugPrint("COFF header: machine %v, %d sections, optional header %d bytes\n",
		result.Machine, result.NumberOfSections, result.SizeOfOptionalHeader)

	return result, nil
}
