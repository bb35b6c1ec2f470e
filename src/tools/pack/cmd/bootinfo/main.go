// Command bootinfo prints a boot information descriptor found in a blob, a
// raw image or an Intel HEX image.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"awakening/src/anticipation"
	"awakening/src/boot/bootinfo"
)

var offsetFlag = flag.String("offset", "0", "byte offset of the descriptor in a raw file")
var addrFlag = flag.String("addr", "", "address of the descriptor in a .hex file")

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: bootinfo [-offset n | -addr a] <file>")
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	if strings.HasSuffix(flag.Arg(0), ".hex") {
		data = fromHex(data)
	} else {
		off, err := strconv.ParseUint(*offsetFlag, 0, 64)
		if err != nil || off > uint64(len(data)) {
			log.Fatalf("bad offset %q", *offsetFlag)
		}
		data = data[off:]
	}
	bi, err := bootinfo.Decode(data)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := bi.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(bi)
	for i, r := range bi.Memory() {
		fmt.Printf("  region %d: %s at %#010x, type %d\n", i, humanize.IBytes(r.Length), r.BaseAddress, r.RegionType)
	}
	fmt.Printf("  available: %s\n", humanize.IBytes(bi.Available()))
	if bi.Init.Present() {
		fmt.Printf("  init: %s\n", humanize.IBytes(bi.Init.ImageLength))
	}
}

func fromHex(data []byte) []byte {
	if *addrFlag == "" {
		log.Fatalf("-addr is required for hex files")
	}
	addr, err := strconv.ParseUint(*addrFlag, 0, 32)
	if err != nil {
		log.Fatalf("bad address %q: %v", *addrFlag, err)
	}
	img := &anticipation.Image{}
	if err := anticipation.Decode(bytes.NewReader(data), img); err != nil {
		log.Fatalf("%v", err)
	}
	n := bootinfo.V2Size
	if avail := int(img.Base) + len(img.Data) - int(addr); avail < n {
		n = avail
	}
	if n < 0 {
		n = 0
	}
	b, err := img.At(uint32(addr), n)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return b
}
