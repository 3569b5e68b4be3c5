package main

import (
	"fmt"
	"os"
)

const usage = `easel - canvas editor for agent workflow graphs

Usage:
  easel serve     [flags]          start the editor server (HTTP panel, SSE, autosave)
  easel import    <file> [flags]   parse a wire document and create a draft
  easel export    <draft> [flags]  print a draft as JSON, Mermaid, DOT, ASCII, or PNG
  easel validate  <file>           check a wire document, exit non-zero on errors
  easel install   [flags]          write settings.json and start (or reload) the server
  easel update    [flags]          self-update from GitHub releases
  easel version                    print the build version

Run "easel <command> -h" for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "install":
		runInstall(os.Args[2:])
	case "update":
		runUpdate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
}
