package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"awakening/src/tools/gensyscall"
)

var force = flag.Bool("f", false, "regenerate even if the output is newer than every source")

func main() {
	flag.Parse()
	if flag.NArg() < 2 {
		log.Fatalf("unable to process input, expected arguments: " +
			"gensyscall [-f] <package dir> <outfile>")
	}
	dir, outFilename := flag.Arg(0), flag.Arg(1)
	sources, err := gensyscall.Sources(dir)
	if err != nil {
		log.Fatalf("%v", err)
	}
	stale, err := gensyscall.Stale(outFilename, sources)
	if err != nil {
		log.Fatalf("stat: %v", err)
	}
	if !stale && !*force {
		return
	}
	pkg, handlers, err := gensyscall.Parse(sources)
	if err != nil {
		log.Fatalf("%v", err)
	}
	out, err := os.Create(outFilename)
	if err != nil {
		log.Fatalf("%v", err)
	}
	wr := bufio.NewWriter(out)
	if err := gensyscall.Write(wr, pkg, handlers); err != nil {
		log.Fatalf("%v", err)
	}
	if err := wr.Flush(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("%s: %d system calls", outFilename, len(handlers))
}
