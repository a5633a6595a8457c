package pe

// An RVA resolver maps a VirtualAddress to a file physical
// address. When the physical file is mapped into memory, sections in
// the file are mapped at different memory addresses. Internally the
// PE file contains pointers to those virtual addresses. This means we
// need to convert these pointers to mapped memory back into the file
// so we can read their data. The RVAResolver is responsible for this
// - it is populated from the header's sections.
type Run struct {
	VirtualAddress uint32

	// Computed in 64 bits so a corrupt VirtualSize can not wrap.
	VirtualEnd uint64

	PhysicalAddress uint32
}

type RVAResolver struct {
	// For now very simple O(n) search in section table order -
	// the first matching section wins.
	Runs []*Run

	// Treat VirtualEnd as part of the run. Some older tools do
	// this; it is off by default.
	InclusiveEnd bool
}

type RVAResolverOption func(resolver *RVAResolver)

// WithInclusiveUpperBound makes an address exactly at the end of a
// section resolve into that section.
func WithInclusiveUpperBound() RVAResolverOption {
	return func(resolver *RVAResolver) {
		resolver.InclusiveEnd = true
	}
}

func (self *RVAResolver) contains(run *Run, rva uint32) bool {
	address := uint64(rva)
	if address < uint64(run.VirtualAddress) {
		return false
	}

	if self.InclusiveEnd {
		return address <= run.VirtualEnd
	}
	return address < run.VirtualEnd
}

// GetFileAddress returns the file offset of rva. The second return is
// false if no section contains the address, which is a normal result
// (e.g. an unused directory entry), not an error.
func (self *RVAResolver) GetFileAddress(rva uint32) (uint32, bool) {
	for _, run := range self.Runs {
		if self.contains(run, rva) {
			return rva - run.VirtualAddress + run.PhysicalAddress, true
		}
	}

	return 0, false
}

func NewRVAResolver(
	sections []SectionHeader, options ...RVAResolverOption) *RVAResolver {
	result := &RVAResolver{}
	for _, option := range options {
		option(result)
	}

	for _, section := range sections {
		result.Runs = append(result.Runs, &Run{
			VirtualAddress: section.VirtualAddress,
			VirtualEnd: uint64(section.VirtualAddress) +
				uint64(section.VirtualSize),
			PhysicalAddress: section.PointerToRawData,
		})
	}

	return result
}
