package pe

import (
	"testing"

	"github.com/alecthomas/assert"
)

func TestRVAResolver(t *testing.T) {
	resolver := NewRVAResolver(testSections())

	// Inside .text
	offset, ok := resolver.GetFileAddress(0x1050)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x450), offset)

	// Section starts resolve to the raw data pointer.
	offset, ok = resolver.GetFileAddress(0x2000)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x800), offset)

	// Last byte of .data
	offset, ok = resolver.GetFileAddress(0x20ff)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x8ff), offset)

	// Gaps and addresses past every section are not an error.
	for _, rva := range []uint32{0, 0xfff, 0x1800, 0x3000, 0xffffffff} {
		_, ok = resolver.GetFileAddress(rva)
		assert.False(t, ok, "rva %#x", rva)
	}
}

func TestRVAResolverUpperBound(t *testing.T) {
	// One past the end of .text
	_, ok := NewRVAResolver(testSections()).GetFileAddress(0x1200)
	assert.False(t, ok)

	resolver := NewRVAResolver(testSections(), WithInclusiveUpperBound())
	assert.True(t, resolver.InclusiveEnd)

	offset, ok := resolver.GetFileAddress(0x1200)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x600), offset)

	_, ok = resolver.GetFileAddress(0x1201)
	assert.False(t, ok)
}

// Overlapping sections are resolved in table order.
func TestRVAResolverFirstMatch(t *testing.T) {
	sections := []SectionHeader{{
		Name:             sectionName("first"),
		VirtualAddress:   0x1000,
		VirtualSize:      0x1000,
		PointerToRawData: 0x400,
	}, {
		Name:             sectionName("second"),
		VirtualAddress:   0x1800,
		VirtualSize:      0x1000,
		PointerToRawData: 0x4000,
	}}

	resolver := NewRVAResolver(sections)
	offset, ok := resolver.GetFileAddress(0x1900)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xd00), offset)

	offset, ok = resolver.GetFileAddress(0x2100)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x4900), offset)
}

// A section reaching past 4GiB must not wrap around to low addresses.
func TestRVAResolverOverflow(t *testing.T) {
	sections := []SectionHeader{{
		VirtualAddress:   0xfffff000,
		VirtualSize:      0x2000,
		PointerToRawData: 0x400,
	}}

	resolver := NewRVAResolver(sections)
	assert.Equal(t, uint64(0x100001000), resolver.Runs[0].VirtualEnd)

	_, ok := resolver.GetFileAddress(0x10)
	assert.False(t, ok)

	offset, ok := resolver.GetFileAddress(0xffffffff)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x13ff), offset)
}

func TestRVAResolverEmpty(t *testing.T) {
	_, ok := NewRVAResolver(nil).GetFileAddress(0)
	assert.False(t, ok)

	// Zero sized sections never match, unless the bound is inclusive.
	sections := []SectionHeader{{VirtualAddress: 0x1000}}
	_, ok = NewRVAResolver(sections).GetFileAddress(0x1000)
	assert.False(t, ok)

	_, ok = NewRVAResolver(sections, WithInclusiveUpperBound()).GetFileAddress(0x1000)
	assert.True(t, ok)
}
