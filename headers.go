package pe

// Shape is which of the three possible header layouts an image has.
type Shape int

const (
	// Only a COFF header (SizeOfOptionalHeader is 0), as in object
	// files.
	ShapeCoffOnly Shape = iota
	ShapePe32
	ShapePe32Plus
)

func (self Shape) String() string {
	switch self {
	case ShapeCoffOnly:
		return "COFF"
	case ShapePe32:
		return "PE32"
	case ShapePe32Plus:
		return "PE32+"
	}
	return "Invalid"
}

// Headers is everything decoded from the header region of an
// image. It is built once by ParseHeaders() and never changes after
// that; accessors hand out copies.
type Headers struct {
	coff_offset int64
	coff_header CoffHeader

	// nil, OptionalHeaderPe32 or OptionalHeaderPe32Plus
	optional_header OptionalHeader

	// nil iff optional_header is nil.
	data_directories []DataDirectory

	// Never nil.
	sections []SectionHeader
}

func (self *Headers) Shape() Shape {
	switch self.optional_header.(type) {
	case OptionalHeaderPe32:
		return ShapePe32
	case OptionalHeaderPe32Plus:
		return ShapePe32Plus
	}
	return ShapeCoffOnly
}

func (self *Headers) CoffHeaderOffset() int64 {
	return self.coff_offset
}

func (self *Headers) CoffHeader() CoffHeader {
	return self.coff_header
}

// OptionalHeader returns nil for COFF only images. Otherwise it is
// one of OptionalHeaderPe32 or OptionalHeaderPe32Plus.
func (self *Headers) OptionalHeader() OptionalHeader {
	return self.optional_header
}

func (self *Headers) OptionalHeaderPe32() (OptionalHeaderPe32, bool) {
	result, ok := self.optional_header.(OptionalHeaderPe32)
	return result, ok
}

func (self *Headers) OptionalHeaderPe32Plus() (OptionalHeaderPe32Plus, bool) {
	result, ok := self.optional_header.(OptionalHeaderPe32Plus)
	return result, ok
}

// DataDirectories is only present when there is an optional header.
func (self *Headers) DataDirectories() ([]DataDirectory, bool) {
	if self.data_directories == nil {
		return nil, false
	}

	result := make([]DataDirectory, len(self.data_directories))
	copy(result, self.data_directories)
	return result, true
}

func (self *Headers) Directory(kind DirectoryKind) (DataDirectory, bool) {
	if kind < 0 || int(kind) >= len(self.data_directories) {
		return DataDirectory{}, false
	}
	return self.data_directories[kind], true
}

// Sections is the section table; it may be empty but is always
// present.
func (self *Headers) Sections() []SectionHeader {
	result := make([]SectionHeader, len(self.sections))
	copy(result, self.sections)
	return result
}

func (self *Headers) SectionByName(name string) (SectionHeader, bool) {
	for _, section := range self.sections {
		if section.NameString() == name {
			return section, true
		}
	}
	return SectionHeader{}, false
}

func (self *Headers) Is64Bit() bool {
	return self.Shape() == ShapePe32Plus
}

// ImageBase is widened to 64 bits for PE32. A COFF only image has no
// preferred base.
func (self *Headers) ImageBase() (uint64, bool) {
	switch t := self.optional_header.(type) {
	case OptionalHeaderPe32:
		return uint64(t.Windows.ImageBase), true
	case OptionalHeaderPe32Plus:
		return t.Windows.ImageBase, true
	}
	return 0, false
}

func (self *Headers) RVAResolver(options ...RVAResolverOption) *RVAResolver {
	return NewRVAResolver(self.sections, options...)
}

// DirectoryFileOffset finds the payload of a data directory in the
// file. Absent or zero sized directories have no payload and are
// never passed to the resolver.
func (self *Headers) DirectoryFileOffset(
	kind DirectoryKind, options ...RVAResolverOption) (uint32, bool) {
	dir, pres := self.Directory(kind)
	if !pres || dir.IsEmpty() {
		return 0, false
	}

	return self.RVAResolver(options...).GetFileAddress(dir.VirtualAddress)
}

// ParseHeaders decodes the complete header region from reader. Either
// everything decodes and a consistent Headers is returned or nothing
// is returned at all.
func ParseHeaders(reader Reader) (*Headers, error) {
	coff_offset, err := LocateCoffHeader(reader)
	if err != nil {
		return nil, err
	}

	coff_header, err := ParseCoffHeader(reader, coff_offset)
	if err != nil {
		return nil, err
	}

	result := &Headers{
		coff_offset: coff_offset,
		coff_header: coff_header,
	}

	// This is the only place the COFF only branch is decided.
	if coff_header.SizeOfOptionalHeader != 0 {
		optional_offset := coff_offset + COFF_HEADER_SIZE
		optional_header, err := ParseOptionalHeader(reader, optional_offset)
		if err != nil {
			return nil, err
		}

		data_directories, err := ParseDataDirectories(reader,
			optional_offset+optional_header.Size(),
			optional_header.NumberOfRvaAndSizes())
		if err != nil {
			return nil, err
		}

		result.optional_header = optional_header
		result.data_directories = data_directories
	}

	result.sections, err = ParseSectionTable(reader, coff_offset, coff_header)
	if err != nil {
		return nil, err
	}

	DebugPrint("Decoded %v headers at %#x\n", result.Shape(), coff_offset)
	Debug(result.optional_header)

	return result, nil
}
