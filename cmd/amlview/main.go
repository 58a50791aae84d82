// Command amlview plays a single HEVC file or URL on the Amlogic video
// layer and exits when the stream ends.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kerbiriou/amlview"
)

func main() {
	x := flag.Int("x", 0, "video area left edge")
	y := flag.Int("y", 0, "video area top edge")
	width := flag.Uint("width", 1280, "video area width")
	height := flag.Uint("height", 720, "video area height")
	fullscreen := flag.Bool("fullscreen", false, "play fullscreen")
	start := flag.Float64("start", 0, "start position in seconds")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file-or-url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	player, code := amlview.New()
	if player == nil {
		fmt.Fprintf(os.Stderr, "create player: %s\n", code)
		os.Exit(1)
	}
	defer player.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		player.Close()
	}()

	check := func(op string, code amlview.Code) {
		if code.Failed() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", op, code)
			player.Close()
			os.Exit(1)
		}
	}

	check("load", player.Load(flag.Arg(0)))
	if *start > 0 {
		check("seek", player.Seek(*start))
	}
	if *fullscreen {
		check("fullscreen", player.SetFullscreen(true))
	} else {
		check("position", player.SetPos(*x, *y))
		check("resize", player.Resize(uint32(*width), uint32(*height)))
	}
	check("show", player.Show())
	check("play", player.Play())
	check("wait", player.WaitUntilEnd())
}
