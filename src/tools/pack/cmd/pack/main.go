package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-tty"

	"awakening/src/board"
	_ "awakening/src/board/nucleo"
	"awakening/src/lib/trust"
	"awakening/src/tools/pack"
)

var outFlag = flag.String("o", "", "output file (required)")
var baseFlag = flag.String("base", "0x08000000", "flash address the image is written to")
var boardFlag = flag.String("board", "nucleo", "registered board name or board description (.yaml)")
var initFlag = flag.String("init", "", "init program to embed")
var hexFlag = flag.Bool("hex", false, "write Intel HEX instead of raw bytes")
var yesFlag = flag.Bool("y", false, "overwrite the output without asking")
var sendFlag = flag.String("send", "", "also stream the image as Intel HEX to this serial device")
var verbose = flag.Bool("v", false, "debug logging")

func main() {
	flag.Parse()
	if flag.NArg() != 1 || *outFlag == "" {
		log.Fatalf("usage: pack -o <out> [-base addr] [-board name|file.yaml] [-init init.elf] [-hex] [-y] kernel.elf")
	}
	logger := trust.NewLogger(os.Stderr, "pack ")
	if *verbose {
		logger.SetLevel(trust.DebugMask)
	}
	base, err := strconv.ParseUint(*baseFlag, 0, 32)
	if err != nil {
		log.Fatalf("bad base address %q: %v", *baseFlag, err)
	}
	b, err := board.Resolve(*boardFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}
	kernel, err := pack.OpenELF(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	var init *pack.Program
	if *initFlag != "" {
		init, err = pack.OpenELF(*initFlag)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	builder := &pack.Builder{Base: base, Board: b, Log: logger}
	img, err := builder.Build(kernel, init)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, p := range img.Parts {
		logger.Infof("%s", p)
	}

	var out bytes.Buffer
	if *hexFlag {
		err = img.WriteHex(&out)
	} else {
		err = img.WriteRaw(&out)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if _, err := os.Stat(*outFlag); err == nil && !*yesFlag && !confirm(*outFlag) {
		log.Fatalf("not overwriting %s", *outFlag)
	}
	if err := os.WriteFile(*outFlag, out.Bytes(), 0o644); err != nil {
		log.Fatalf("%v", err)
	}
	if !img.Patched {
		blob := *outFlag + ".bootinfo"
		if err := os.WriteFile(blob, img.Blob, 0o644); err != nil {
			log.Fatalf("%v", err)
		}
		logger.Warnf("boot info written separately to %s", blob)
	}
	logger.Infof("%s: %s at %#08x, entry %#08x, %s of ram described",
		*outFlag, humanize.IBytes(uint64(len(img.Data))), img.Base, img.Entry, humanize.IBytes(img.Info.Available()))

	if *sendFlag != "" {
		send(*sendFlag, img)
	}
}

// confirm asks on the controlling terminal, which works even when stdin is
// redirected.
func confirm(path string) bool {
	t, err := tty.Open()
	if err != nil {
		log.Fatalf("%s exists and there is no terminal to ask on (use -y): %v", path, err)
	}
	defer t.Close()
	fmt.Fprintf(t.Output(), "%s exists, overwrite? [y/N] ", path)
	r, err := t.ReadRune()
	fmt.Fprintln(t.Output())
	return err == nil && (r == 'y' || r == 'Y')
}

// send streams the image to a loader listening on a serial line.
func send(devTTYPath string, img *pack.Image) {
	t, err := tty.OpenDevice(devTTYPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer t.Close()
	restore := t.MustRaw()
	defer restore()
	if err := img.WriteHex(t.Output()); err != nil {
		log.Fatalf("send: %v", err)
	}
	log.Printf("sent %s to %s", humanize.IBytes(uint64(len(img.Data))), devTTYPath)
}
