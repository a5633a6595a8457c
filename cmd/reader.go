package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/binparsergen/reader"
	pe "www.velocidex.com/golang/pepeek"
)

// parseHeaders decodes fd with the backing selected on the command
// line. Every backing reads the same bytes; only the I/O differs.
func parseHeaders(fd *os.File) *pe.Headers {
	defer fd.Close()

	if *debug_flag {
		pe.SetDebug(true)
	}

	var pe_reader pe.Reader
	switch {
	case *mmap_flag:
		mapped, err := pe.OpenMappedFile(fd.Name())
		kingpin.FatalIfError(err, "Can not map file %s: %v", fd.Name(), err)
		defer mapped.Close()
		pe_reader = mapped

	case *seek_flag:
		seeking, err := pe.NewSeekingReader(fd)
		kingpin.FatalIfError(err, "Can not open file %s: %v", fd.Name(), err)
		pe_reader = seeking

	default:
		stat, err := fd.Stat()
		kingpin.FatalIfError(err, "Can not open file %s: %v", fd.Name(), err)

		paged, err := reader.NewPagedReader(fd, 4096, 100)
		kingpin.FatalIfError(err, "Can not open file %s: %v", fd.Name(), err)
		pe_reader = pe.NewPositionalReader(paged, stat.Size())
	}

	headers, err := pe.ParseHeaders(pe_reader)
	kingpin.FatalIfError(err, "Can not parse file %s: %v", fd.Name(), err)

	return headers
}
