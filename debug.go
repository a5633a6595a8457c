// Debug output for the decoders. Nothing is printed unless PE_DEBUG
// is set in the environment or SetDebug(true) was called.

package pe

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
)

var (
	pe_debug      int32
	pe_debug_once sync.Once
)

func debugEnabled() bool {
	pe_debug_once.Do(func() {
		// Only the first lookup touches the environment.
		_, pres := os.LookupEnv("PE_DEBUG")
		if pres {
			atomic.CompareAndSwapInt32(&pe_debug, 0, 1)
		}
	})
	return atomic.LoadInt32(&pe_debug) == 1
}

func SetDebug(enabled bool) {
	// Make sure a later environment check does not override us.
	pe_debug_once.Do(func() {})

	value := int32(0)
	if enabled {
		value = 1
	}
	atomic.StoreInt32(&pe_debug, value)
}

func DebugPrint(fmt_str string, v ...interface{}) {
	if debugEnabled() {
		fmt.Fprintf(os.Stderr, fmt_str, v...)
	}
}

// Debug dumps the structure of any decoded value to stderr.
func Debug(arg interface{}) {
	if debugEnabled() {
		spew.Fdump(os.Stderr, arg)
	}
}
