package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "negotiator.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "report":
			reportCmd(os.Args[2:])
			return
		case "start":
			startCmd(os.Args[2:])
			return
		case "end":
			endCmd(os.Args[2:])
			return
		case "set-utility":
			setUtilityCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the event log files under the data dir.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := persistlog.EventFiles(persistlog.EventsDir(*dataDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, f := range files {
		fmt.Println(filepath.Base(f))
	}
}
