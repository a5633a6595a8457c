package pe

import (
	"encoding/binary"
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

type OptionalHeaderMagic uint16

const (
	IMAGE_NT_OPTIONAL_HDR32_MAGIC OptionalHeaderMagic = 0x10b
	IMAGE_NT_OPTIONAL_HDR64_MAGIC OptionalHeaderMagic = 0x20b

	// Fixed spans actually decoded for each variant. The declared
	// SizeOfOptionalHeader may be larger.
	OPTIONAL_HEADER32_SIZE = 96
	OPTIONAL_HEADER64_SIZE = 112
)

func (self OptionalHeaderMagic) String() string {
	switch self {
	case IMAGE_NT_OPTIONAL_HDR32_MAGIC:
		return "PE32"
	case IMAGE_NT_OPTIONAL_HDR64_MAGIC:
		return "PE32+"
	}
	return fmt.Sprintf("%#x", uint16(self))
}

type Subsystem uint16

const (
	IMAGE_SUBSYSTEM_UNKNOWN                  Subsystem = 0
	IMAGE_SUBSYSTEM_NATIVE                   Subsystem = 1
	IMAGE_SUBSYSTEM_WINDOWS_GUI              Subsystem = 2
	IMAGE_SUBSYSTEM_WINDOWS_CUI              Subsystem = 3
	IMAGE_SUBSYSTEM_OS2_CUI                  Subsystem = 5
	IMAGE_SUBSYSTEM_POSIX_CUI                Subsystem = 7
	IMAGE_SUBSYSTEM_NATIVE_WINDOWS           Subsystem = 8
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI           Subsystem = 9
	IMAGE_SUBSYSTEM_EFI_APPLICATION          Subsystem = 10
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER  Subsystem = 11
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER       Subsystem = 12
	IMAGE_SUBSYSTEM_EFI_ROM                  Subsystem = 13
	IMAGE_SUBSYSTEM_XBOX                     Subsystem = 14
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION Subsystem = 16
)

var subsystems = map[Subsystem]enumName{
	IMAGE_SUBSYSTEM_UNKNOWN:                  {"Unknown", "Unknown"},
	IMAGE_SUBSYSTEM_NATIVE:                   {"Native", "Device driver / native Windows process"},
	IMAGE_SUBSYSTEM_WINDOWS_GUI:              {"WindowsGUI", "Windows GUI"},
	IMAGE_SUBSYSTEM_WINDOWS_CUI:              {"WindowsCUI", "Windows CUI"},
	IMAGE_SUBSYSTEM_OS2_CUI:                  {"OS2CUI", "OS/2 CUI"},
	IMAGE_SUBSYSTEM_POSIX_CUI:                {"PosixCUI", "POSIX CUI"},
	IMAGE_SUBSYSTEM_NATIVE_WINDOWS:           {"NativeWindows", "Native Win9x driver"},
	IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           {"WindowsCEGUI", "Windows CE"},
	IMAGE_SUBSYSTEM_EFI_APPLICATION:          {"EFIApplication", "EFI application"},
	IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  {"EFIBootServiceDriver", "EFI driver with boot services"},
	IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       {"EFIRuntimeDriver", "EFI driver with runtime services"},
	IMAGE_SUBSYSTEM_EFI_ROM:                  {"EFIROM", "EFI ROM"},
	IMAGE_SUBSYSTEM_XBOX:                     {"Xbox", "Xbox"},
	IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: {"WindowsBootApplication", "Windows boot application"},
}

func (self Subsystem) Known() bool {
	_, pres := subsystems[self]
	return pres
}

func (self Subsystem) Name() string {
	info, pres := subsystems[self]
	if !pres {
		return fmt.Sprintf("%#x", uint16(self))
	}
	return info.name
}

func (self Subsystem) Description() string {
	info, pres := subsystems[self]
	if !pres {
		return "Unrecognized subsystem"
	}
	return info.description
}

func (self Subsystem) String() string {
	return self.Name()
}

type DllCharacteristics uint16

const (
	IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA       DllCharacteristics = 0x0020
	IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE          DllCharacteristics = 0x0040
	IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY       DllCharacteristics = 0x0080
	IMAGE_DLLCHARACTERISTICS_NX_COMPAT             DllCharacteristics = 0x0100
	IMAGE_DLLCHARACTERISTICS_NO_ISOLATION          DllCharacteristics = 0x0200
	IMAGE_DLLCHARACTERISTICS_NO_SEH                DllCharacteristics = 0x0400
	IMAGE_DLLCHARACTERISTICS_NO_BIND               DllCharacteristics = 0x0800
	IMAGE_DLLCHARACTERISTICS_APPCONTAINER          DllCharacteristics = 0x1000
	IMAGE_DLLCHARACTERISTICS_WDM_DRIVER            DllCharacteristics = 0x2000
	IMAGE_DLLCHARACTERISTICS_GUARD_CF              DllCharacteristics = 0x4000
	IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE DllCharacteristics = 0x8000
)

var dll_characteristics = []flagName{
	{uint32(IMAGE_DLLCHARACTERISTICS_HIGH_ENTROPY_VA), "HighEntropyVA"},
	{uint32(IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE), "DynamicBase"},
	{uint32(IMAGE_DLLCHARACTERISTICS_FORCE_INTEGRITY), "ForceIntegrity"},
	{uint32(IMAGE_DLLCHARACTERISTICS_NX_COMPAT), "NXCompat"},
	{uint32(IMAGE_DLLCHARACTERISTICS_NO_ISOLATION), "NoIsolation"},
	{uint32(IMAGE_DLLCHARACTERISTICS_NO_SEH), "NoSEH"},
	{uint32(IMAGE_DLLCHARACTERISTICS_NO_BIND), "NoBind"},
	{uint32(IMAGE_DLLCHARACTERISTICS_APPCONTAINER), "AppContainer"},
	{uint32(IMAGE_DLLCHARACTERISTICS_WDM_DRIVER), "WDMDriver"},
	{uint32(IMAGE_DLLCHARACTERISTICS_GUARD_CF), "GuardCF"},
	{uint32(IMAGE_DLLCHARACTERISTICS_TERMINAL_SERVER_AWARE), "TerminalServerAware"},
}

func (self DllCharacteristics) Has(flag DllCharacteristics) bool {
	return self&flag == flag
}

func (self DllCharacteristics) Names() []string {
	return flagNames(uint32(self), dll_characteristics)
}

func (self DllCharacteristics) Unknown() DllCharacteristics {
	return DllCharacteristics(unknownBits(uint32(self), dll_characteristics))
}

// OptionalHeader is implemented by exactly two types:
// OptionalHeaderPe32 and OptionalHeaderPe32Plus. Consumers should type
// switch over both.
type OptionalHeader interface {
	Magic() OptionalHeaderMagic

	// Number of data directory entries following the fixed span.
	NumberOfRvaAndSizes() uint32

	// Size of the fixed span decoded (96 or 112 bytes).
	Size() int64

	ToDict() *ordereddict.Dict

	isOptionalHeader()
}

type StandardFieldsPe32 struct {
	Magic                   OptionalHeaderMagic
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
	BaseOfData              uint32
}

// Same as StandardFieldsPe32 without BaseOfData.
type StandardFieldsPe32Plus struct {
	Magic                   OptionalHeaderMagic
	MajorLinkerVersion      uint8
	MinorLinkerVersion      uint8
	SizeOfCode              uint32
	SizeOfInitializedData   uint32
	SizeOfUninitializedData uint32
	AddressOfEntryPoint     uint32
	BaseOfCode              uint32
}

type WindowsFieldsPe32 struct {
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   Subsystem
	DllCharacteristics          DllCharacteristics
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// The address sized fields are 64 bits wide here.
type WindowsFieldsPe32Plus struct {
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   Subsystem
	DllCharacteristics          DllCharacteristics
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

type OptionalHeaderPe32 struct {
	Standard StandardFieldsPe32
	Windows  WindowsFieldsPe32
}

func (self OptionalHeaderPe32) isOptionalHeader() {}

func (self OptionalHeaderPe32) Magic() OptionalHeaderMagic {
	return self.Standard.Magic
}

func (self OptionalHeaderPe32) NumberOfRvaAndSizes() uint32 {
	return self.Windows.NumberOfRvaAndSizes
}

func (self OptionalHeaderPe32) Size() int64 {
	return OPTIONAL_HEADER32_SIZE
}

type OptionalHeaderPe32Plus struct {
	Standard StandardFieldsPe32Plus
	Windows  WindowsFieldsPe32Plus
}

func (self OptionalHeaderPe32Plus) isOptionalHeader() {}

func (self OptionalHeaderPe32Plus) Magic() OptionalHeaderMagic {
	return self.Standard.Magic
}

func (self OptionalHeaderPe32Plus) NumberOfRvaAndSizes() uint32 {
	return self.Windows.NumberOfRvaAndSizes
}

func (self OptionalHeaderPe32Plus) Size() int64 {
	return OPTIONAL_HEADER64_SIZE
}

func (self OptionalHeaderPe32) ToDict() *ordereddict.Dict {
	std := self.Standard
	win := self.Windows

	return ordereddict.NewDict().
		Set("Magic", std.Magic.String()).
		Set("LinkerVersion", fmt.Sprintf("%d.%d",
			std.MajorLinkerVersion, std.MinorLinkerVersion)).
		Set("SizeOfCode", std.SizeOfCode).
		Set("SizeOfInitializedData", std.SizeOfInitializedData).
		Set("SizeOfUninitializedData", std.SizeOfUninitializedData).
		Set("AddressOfEntryPoint", std.AddressOfEntryPoint).
		Set("BaseOfCode", std.BaseOfCode).
		Set("BaseOfData", std.BaseOfData).
		Set("ImageBase", win.ImageBase).
		Set("SectionAlignment", win.SectionAlignment).
		Set("FileAlignment", win.FileAlignment).
		Set("OperatingSystemVersion", fmt.Sprintf("%d.%d",
			win.MajorOperatingSystemVersion, win.MinorOperatingSystemVersion)).
		Set("ImageVersion", fmt.Sprintf("%d.%d",
			win.MajorImageVersion, win.MinorImageVersion)).
		Set("SubsystemVersion", fmt.Sprintf("%d.%d",
			win.MajorSubsystemVersion, win.MinorSubsystemVersion)).
		Set("Win32VersionValue", win.Win32VersionValue).
		Set("SizeOfImage", win.SizeOfImage).
		Set("SizeOfHeaders", win.SizeOfHeaders).
		Set("CheckSum", win.CheckSum).
		Set("Subsystem", win.Subsystem.Name()).
		Set("DllCharacteristics", win.DllCharacteristics.Names()).
		Set("DllCharacteristicsRaw", uint16(win.DllCharacteristics)).
		Set("SizeOfStackReserve", win.SizeOfStackReserve).
		Set("SizeOfStackCommit", win.SizeOfStackCommit).
		Set("SizeOfHeapReserve", win.SizeOfHeapReserve).
		Set("SizeOfHeapCommit", win.SizeOfHeapCommit).
		Set("LoaderFlags", win.LoaderFlags).
		Set("NumberOfRvaAndSizes", win.NumberOfRvaAndSizes)
}

func (self OptionalHeaderPe32Plus) ToDict() *ordereddict.Dict {
	std := self.Standard
	win := self.Windows

	return ordereddict.NewDict().
		Set("Magic", std.Magic.String()).
		Set("LinkerVersion", fmt.Sprintf("%d.%d",
			std.MajorLinkerVersion, std.MinorLinkerVersion)).
		Set("SizeOfCode", std.SizeOfCode).
		Set("SizeOfInitializedData", std.SizeOfInitializedData).
		Set("SizeOfUninitializedData", std.SizeOfUninitializedData).
		Set("AddressOfEntryPoint", std.AddressOfEntryPoint).
		Set("BaseOfCode", std.BaseOfCode).
		Set("ImageBase", win.ImageBase).
		Set("SectionAlignment", win.SectionAlignment).
		Set("FileAlignment", win.FileAlignment).
		Set("OperatingSystemVersion", fmt.Sprintf("%d.%d",
			win.MajorOperatingSystemVersion, win.MinorOperatingSystemVersion)).
		Set("ImageVersion", fmt.Sprintf("%d.%d",
			win.MajorImageVersion, win.MinorImageVersion)).
		Set("SubsystemVersion", fmt.Sprintf("%d.%d",
			win.MajorSubsystemVersion, win.MinorSubsystemVersion)).
		Set("Win32VersionValue", win.Win32VersionValue).
		Set("SizeOfImage", win.SizeOfImage).
		Set("SizeOfHeaders", win.SizeOfHeaders).
		Set("CheckSum", win.CheckSum).
		Set("Subsystem", win.Subsystem.Name()).
		Set("DllCharacteristics", win.DllCharacteristics.Names()).
		Set("DllCharacteristicsRaw", uint16(win.DllCharacteristics)).
		Set("SizeOfStackReserve", win.SizeOfStackReserve).
		Set("SizeOfStackCommit", win.SizeOfStackCommit).
		Set("SizeOfHeapReserve", win.SizeOfHeapReserve).
		Set("SizeOfHeapCommit", win.SizeOfHeapCommit).
		Set("LoaderFlags", win.LoaderFlags).
		Set("NumberOfRvaAndSizes", win.NumberOfRvaAndSizes)
}

// PeekOptionalHeaderMagic reads the two byte magic at the start of the
// optional header. The same bytes are decoded again as the first
// field of whichever variant it selects.
func PeekOptionalHeaderMagic(reader Reader, offset int64) (OptionalHeaderMagic, error) {
	data, err := reader.ReadExact(offset, 2)
	if err != nil {
		return 0, errors.Wrap(err, "optional header magic")
	}
	return OptionalHeaderMagic(binary.LittleEndian.Uint16(data)), nil
}

// ParseOptionalHeader decodes the optional header starting at
// offset. Every later offset depends on which variant this is, so an
// unknown magic fails the whole decode.
func ParseOptionalHeader(reader Reader, offset int64) (OptionalHeader, error) {
	magic, err := PeekOptionalHeaderMagic(reader, offset)
	if err != nil {
		return nil, err
	}

	DebugPrint("Optional header at %#x has magic %v\n", offset, magic)

	switch magic {
	case IMAGE_NT_OPTIONAL_HDR32_MAGIC:
		return parseOptionalHeaderPe32(reader, offset)

	case IMAGE_NT_OPTIONAL_HDR64_MAGIC:
		return parseOptionalHeaderPe32Plus(reader, offset)
	}

	return nil, unrecognizedMagic(offset, uint16(magic))
}

func parseOptionalHeaderPe32(reader Reader, offset int64) (OptionalHeader, error) {
	data, err := reader.ReadExact(offset, OPTIONAL_HEADER32_SIZE)
	if err != nil {
		return nil, errors.Wrap(err, "PE32 optional header")
	}

	decoder := NewFieldDecoder(data)
	result := OptionalHeaderPe32{
		Standard: StandardFieldsPe32{
			Magic:                   OptionalHeaderMagic(decoder.Uint16()),
			MajorLinkerVersion:      decoder.Uint8(),
			MinorLinkerVersion:      decoder.Uint8(),
			SizeOfCode:              decoder.Uint32(),
			SizeOfInitializedData:   decoder.Uint32(),
			SizeOfUninitializedData: decoder.Uint32(),
			AddressOfEntryPoint:     decoder.Uint32(),
			BaseOfCode:              decoder.Uint32(),
			BaseOfData:              decoder.Uint32(),
		},
	}

	result.Windows = WindowsFieldsPe32{
		ImageBase:                   decoder.Uint32(),
		SectionAlignment:            decoder.Uint32(),
		FileAlignment:               decoder.Uint32(),
		MajorOperatingSystemVersion: decoder.Uint16(),
		MinorOperatingSystemVersion: decoder.Uint16(),
		MajorImageVersion:           decoder.Uint16(),
		MinorImageVersion:           decoder.Uint16(),
		MajorSubsystemVersion:       decoder.Uint16(),
		MinorSubsystemVersion:       decoder.Uint16(),
		Win32VersionValue:           decoder.Uint32(),
		SizeOfImage:                 decoder.Uint32(),
		SizeOfHeaders:               decoder.Uint32(),
		CheckSum:                    decoder.Uint32(),
		Subsystem:                   Subsystem(decoder.Uint16()),
		DllCharacteristics:          DllCharacteristics(decoder.Uint16()),
		SizeOfStackReserve:          decoder.Uint32(),
		SizeOfStackCommit:           decoder.Uint32(),
		SizeOfHeapReserve:           decoder.Uint32(),
		SizeOfHeapCommit:            decoder.Uint32(),
		LoaderFlags:                 decoder.Uint32(),
		NumberOfRvaAndSizes:         decoder.Uint32(),
	}

	return result, nil
}

func parseOptionalHeaderPe32Plus(reader Reader, offset int64) (OptionalHeader, error) {
	data, err := reader.ReadExact(offset, OPTIONAL_HEADER64_SIZE)
	if err != nil {
		return nil, errors.Wrap(err, "PE32+ optional header")
	}

	decoder := NewFieldDecoder(data)
	result := OptionalHeaderPe32Plus{
		Standard: StandardFieldsPe32Plus{
			Magic:                   OptionalHeaderMagic(decoder.Uint16()),
			MajorLinkerVersion:      decoder.Uint8(),
			MinorLinkerVersion:      decoder.Uint8(),
			SizeOfCode:              decoder.Uint32(),
			SizeOfInitializedData:   decoder.Uint32(),
			SizeOfUninitializedData: decoder.Uint32(),
			AddressOfEntryPoint:     decoder.Uint32(),
			BaseOfCode:              decoder.Uint32(),
		},
	}

	result.Windows = WindowsFieldsPe32Plus{
		ImageBase:                   decoder.Uint64(),
		SectionAlignment:            decoder.Uint32(),
		FileAlignment:               decoder.Uint32(),
		MajorOperatingSystemVersion: decoder.Uint16(),
		MinorOperatingSystemVersion: decoder.Uint16(),
		MajorImageVersion:           decoder.Uint16(),
		MinorImageVersion:           decoder.Uint16(),
		MajorSubsystemVersion:       decoder.Uint16(),
		MinorSubsystemVersion:       decoder.Uint16(),
		Win32VersionValue:           decoder.Uint32(),
		SizeOfImage:                 decoder.Uint32(),
		SizeOfHeaders:               decoder.Uint32(),
		CheckSum:                    decoder.Uint32(),
		Subsystem:                   Subsystem(decoder.Uint16()),
		DllCharacteristics:          DllCharacteristics(decoder.Uint16()),
		SizeOfStackReserve:          decoder.Uint64(),
		SizeOfStackCommit:           decoder.Uint64(),
		SizeOfHeapReserve:           decoder.Uint64(),
		SizeOfHeapCommit:            decoder.Uint64(),
		LoaderFlags:                 decoder.Uint32(),
		NumberOfRvaAndSizes:         decoder.Uint32(),
	}

	return result, nil
}
