package main

import (
	"context"
	"fmt"
	"os"

	"github.com/osmexport/osmextract"
	"github.com/osmexport/osmextract/config"
	"github.com/osmexport/osmextract/extract"
	"github.com/osmexport/osmextract/log"
)

func PrintCmds() {
	fmt.Fprintf(os.Stderr, "Usage: %s COMMAND [args]\n\n", os.Args[0])
	fmt.Println("Available commands:")
	fmt.Println("\textract")
	fmt.Println("\tversion")
}

func Main(usage func()) {
	if len(os.Args) <= 1 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		opts := config.ParseExtract(os.Args[2:])
		if err := extract.Extract(context.Background(), opts); err != nil {
			log.Fatalf("[fatal] %s", err)
		}
	case "version":
		fmt.Println(osmextract.Version)
		os.Exit(0)
	default:
		usage()
		log.Fatalf("[fatal] invalid command: '%s'", os.Args[1])
	}
	os.Exit(0)
}

func main() {
	Main(PrintCmds)
}
