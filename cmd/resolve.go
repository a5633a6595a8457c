package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/Velocidex/ordereddict"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	pe "www.velocidex.com/golang/pepeek"
)

var (
	resolve_command      = app.Command("resolve", "Maps a relative virtual address to a file offset.")
	resolve_command_file = resolve_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
	resolve_command_rva = resolve_command.Arg("rva", "The RVA (e.g. 0x1050)").
				Required().String()
	resolve_command_inclusive = resolve_command.Flag("inclusive",
		"Count the address just past a section's end as inside it.").Bool()
)

func doResolve() {
	rva, err := strconv.ParseUint(*resolve_command_rva, 0, 32)
	kingpin.FatalIfError(err, "Invalid RVA %v", *resolve_command_rva)

	headers := parseHeaders(*resolve_command_file)

	options := []pe.RVAResolverOption{}
	if *resolve_command_inclusive {
		options = append(options, pe.WithInclusiveUpperBound())
	}

	result := ordereddict.NewDict().Set("RVA", rva)
	offset, ok := headers.RVAResolver(options...).GetFileAddress(uint32(rva))
	if ok {
		result.Set("FileOffset", offset)
	} else {
		result.Set("FileOffset", nil)
	}

	serialized, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(serialized))
}
