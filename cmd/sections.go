package main

import (
	"encoding/json"
	"fmt"
	"os"
)

var (
	sections_command      = app.Command("sections", "Lists the section table of a pe file.")
	sections_command_file = sections_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
)

func doSections() {
	headers := parseHeaders(*sections_command_file)

	serialized, _ := json.MarshalIndent(headers.SectionSummaries(), "", "  ")
	fmt.Println(string(serialized))
}
