package main

import (
	"encoding/json"
	"fmt"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("pepeek", "Decodes the headers of PE/COFF images.")

	mmap_flag  = app.Flag("mmap", "Memory map the file instead of reading it through a page cache.").Bool()
	seek_flag  = app.Flag("seek", "Read the file with seek and read calls.").Bool()
	debug_flag = app.Flag("debug", "Print decoder debug messages.").Bool()

	info_command      = app.Command("info", "Displays all the headers of a pe file.")
	info_command_file = info_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
)

func doInfo() {
	headers := parseHeaders(*info_command_file)

	serialized, _ := json.MarshalIndent(headers, "", "  ")
	fmt.Println(string(serialized))
}

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	switch command {

	case info_command.FullCommand():
		doInfo()

	case sections_command.FullCommand():
		doSections()

	case resolve_command.FullCommand():
		doResolve()
	}
}
