package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/user-none/corehost/host"
	"github.com/user-none/corehost/storage"
)

func main() {
	volume := flag.Float64("volume", 1.0, "Output volume (0.0-1.0)")
	muted := flag.Bool("muted", false, "Start muted")
	backend := flag.String("backend", "oto", "Audio backend: oto, beep or headless")
	buffer := flag.Int("buffer", 1024, "Audio callback size in frames")
	entry := flag.String("entry", "", "Module file to use inside an archive")
	demo := flag.Bool("demo", false, "Use the built-in tone core instead of a module")
	configPath := flag.String("config", "", "Config file (default: config.json in the data directory)")
	writeConfig := flag.Bool("write-config", false, "Create a default config file if none exists and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corehost [options] [module.wasm|archive]\n\nRuns a WebAssembly simulation core paced by the audio device.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nWhile running, enter m (mute), + / - (volume), b (burst), r (reset) or q (quit).\n")
	}
	flag.Parse()

	storage.Init(storage.DefaultAppName)

	if *writeConfig {
		path := *configPath
		if path == "" {
			var err error
			if path, err = storage.GetConfigPath(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
		}
		if err := storage.CreateConfigAt(path); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(1)
	}

	var cfg *storage.Config
	var err error
	if *configPath != "" {
		cfg, err = storage.LoadConfigFrom(*configPath)
	} else {
		cfg, err = storage.LoadConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "volume":
			cfg.Audio.Volume = *volume
		case "muted":
			cfg.Audio.Muted = *muted
		case "backend":
			cfg.Audio.Backend = *backend
		case "buffer":
			cfg.Audio.BufferSize = *buffer
		case "entry":
			cfg.Core.Entry = *entry
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = host.Run(ctx, host.Options{
		Config:     cfg,
		ModulePath: flag.Arg(0),
		Demo:       *demo,
	})
	if err != nil {
		log.Printf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}
