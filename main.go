/*
This is an example of application that will use the
engine package to show the depth buffer of a simple scene
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	headless := flag.Bool("headless", false, "render off screen without a window")
	frames := flag.Uint64("frames", 0, "stop after this many presented frames, 0 runs until the window closes")
	snapshot := flag.String("snapshot", "", "write the final depth buffer to this file (headless only)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			core.LogFatal(err.Error())
		}
		cfg = c
	}
	if *headless {
		cfg.Renderer.Backend = config.BackendHeadless
		cfg.Assets.Watch = false
	}

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(cfg, tb.Game, engine.WithMaxFrames(*frames))
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogError("failed to initialize: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		e.Stop()
	}()

	// run engine
	runErr := e.Run()

	if *snapshot != "" {
		if err := e.Snapshot(*snapshot); err != nil {
			core.LogError("failed to write snapshot: %s", err)
		} else {
			core.LogInfo("depth snapshot written to %s", *snapshot)
		}
	}

	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
