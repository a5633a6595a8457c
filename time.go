package pe

import (
	"time"
)

// TimeDateStamp is the raw COFF creation time: the low 32 bits of the
// number of seconds since 1970-01-01 UTC. The linker is free to put
// anything here (reproducible builds store a hash), so this is only
// ever a number.
type TimeDateStamp uint32

func (self TimeDateStamp) Time() time.Time {
	return time.Unix(int64(self), 0).UTC()
}

func (self TimeDateStamp) String() string {
	result, _ := self.Time().MarshalText()
	return string(result)
}
