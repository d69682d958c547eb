package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = cmdScan(os.Args[2:])
	case "dump":
		err = cmdDump(os.Args[2:])
	case "relocs":
		err = cmdRelocs(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `somtool: SOM object file inspector

Usage:
  somtool scan   --in <object> [--json]            Header and dictionary summary
  somtool dump   --in <object> --out <dir>           Dump dictionaries as JSON
  somtool relocs --in <object> [--sub <n>] [--jsonl] Decode fixup streams
  somtool verify --in <object>                     Decode/re-encode round-trip report
  somtool graph  --in <object> --out <dir>           Symbol reference graph (JSON + DOT)

Flags:
  --in <path>        Path to the SOM object file
  --out <dir>          Output directory
  --strict             Fail on first structural error
  --max-steps <n>      Relocation cap per subspace
`)
}
