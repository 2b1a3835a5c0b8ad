package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// colorStatus tints job and item statuses when writing to a terminal.
func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	var color string
	switch status {
	case "completed":
		color = ansiGreen
	case "failed":
		color = ansiRed
	case "running":
		color = ansiYellow
	case "pending":
		color = ansiBlue
	default:
		return status
	}
	return color + status + ansiReset
}

func renderKeyValue(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%-18s %s\n", label+":", value)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
