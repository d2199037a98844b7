package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// loadJASSFile reads the declarations of a JASS file such as common.j or blizzard.j.
func loadJASSFile(filename string) (PreservedNames, error) {
	f, err := os.Open(filename)
	if err != nil {
		return PreservedNames{}, err
	}
	defer f.Close()

	names, err := scanJASS(f)
	if err != nil {
		return PreservedNames{}, fmt.Errorf("JASS file %q: %w", filename, err)
	}
	return names, nil
}

// scanJASS collects the names of natives and functions, and of the variables declared in globals blocks.
func scanJASS(r io.Reader) (PreservedNames, error) {
	names := PreservedNames{}
	inGlobals := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "//"); i != -1 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "globals":
			inGlobals = true
			continue
		case "endglobals":
			inGlobals = false
			continue
		case "constant":
			fields = fields[1:]
		}

		if 3 <= len(fields) && (fields[0] == "native" || fields[0] == "function") && fields[2] == "takes" {
			names.Functions = append(names.Functions, fields[1])
		} else if inGlobals && 2 <= len(fields) {
			// type [array] name [= value]
			name := fields[1]
			if name == "array" && 3 <= len(fields) {
				name = fields[2]
			}
			if i := strings.IndexByte(name, '='); i != -1 {
				name = name[:i]
			}
			if name != "" {
				names.Variables = append(names.Variables, name)
			}
		}
	}
	return names, scanner.Err()
}
