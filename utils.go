package pe

import (
	"encoding/binary"
)

// FieldDecoder walks a buffer already read from the image and decodes
// consecutive little endian fields. The buffer is always read with
// ReadExact() for the full span of the structure first, so the
// decoder never runs past its end.
type FieldDecoder struct {
	buff   []byte
	offset int
}

func (self *FieldDecoder) Uint8() uint8 {
	result := self.buff[self.offset]
	self.offset++
	return result
}

func (self *FieldDecoder) Uint16() uint16 {
	result := binary.LittleEndian.Uint16(self.buff[self.offset:])
	self.offset += 2
	return result
}

func (self *FieldDecoder) Uint32() uint32 {
	result := binary.LittleEndian.Uint32(self.buff[self.offset:])
	self.offset += 4
	return result
}

func (self *FieldDecoder) Uint64() uint64 {
	result := binary.LittleEndian.Uint64(self.buff[self.offset:])
	self.offset += 8
	return result
}

func (self *FieldDecoder) Bytes(dest []byte) {
	copy(dest, self.buff[self.offset:])
	self.offset += len(dest)
}

func (self *FieldDecoder) Tell() int {
	return self.offset
}

func NewFieldDecoder(buff []byte) *FieldDecoder {
	return &FieldDecoder{buff: buff}
}

func CapUint32(v uint32, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}
