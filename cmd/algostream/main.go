// Command algostream runs the realtime audio processing engine: it
// captures PCM audio, transforms it through a configured graph of filters,
// mixers and processors, and delivers the result to a playback device.
//
// Usage:
//
//	algostream [flags] configfile
//
// Examples:
//
//	algostream config.yml
//	algostream -v config.yml
//	algostream -check config.yml
//	algostream -wait
//
// SIGHUP reloads the configuration from the same path without interrupting
// audio when only the processing section changed. A second SIGINT while a
// graceful shutdown is in progress forces exit code 103.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/engine"
	"github.com/cwbudde/algo-stream/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		check    = flag.Bool("check", false, "validate the config and exit")
		wait     = flag.Bool("wait", false, "start without a config and wait for one on the control channel")
		verbose  = flag.Bool("v", false, "debug logging")
		trace    = flag.Bool("vv", false, "trace logging")
		logLevel = flag.String("loglevel", "", "explicit log level (trace, debug, info, warn, error)")
		logFile  = flag.String("logfile", "", "write the log to a file instead of stderr")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case *logLevel != "":
		level, err := logrus.ParseLevel(*logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
			return engine.ExitBadConfig
		}
		log.SetLevel(level)
	case *trace:
		log.SetLevel(logrus.TraceLevel)
	case *verbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open log file: %v\n", err)
			return engine.ExitBadConfig
		}
		defer f.Close()
		log.SetOutput(f)
	}

	var cfg *config.Config
	if flag.NArg() > 0 {
		path := flag.Arg(0)
		loaded, err := config.Load(path)
		if err != nil {
			log.WithError(err).Error("could not load config")
			return engine.ExitBadConfig
		}
		if err := loaded.Validate(); err != nil {
			log.WithError(err).Error("invalid config")
			return engine.ExitBadConfig
		}
		if err := pipeline.Validate(loaded); err != nil {
			log.WithError(err).Error("invalid config")
			return engine.ExitBadConfig
		}
		cfg = loaded
	} else if !*wait {
		fmt.Fprintln(os.Stderr, "no config file given (use -wait to start without one)")
		return engine.ExitBadConfig
	}

	if *check {
		if cfg == nil {
			fmt.Fprintln(os.Stderr, "nothing to check without a config file")
			return engine.ExitBadConfig
		}
		normalized, err := cfg.Marshal()
		if err != nil {
			log.WithError(err).Error("could not serialize config")
			return engine.ExitBadConfig
		}
		os.Stdout.Write(normalized)
		log.Info("config is valid")
		return engine.ExitOK
	}

	eng := engine.New(engine.Options{Config: cfg, Log: log})

	// SIGHUP reloads, SIGINT/SIGTERM shut down gracefully; a second
	// interrupt forces the exit.
	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		interrupted := false
		for sig := range signals {
			switch sig {
			case syscall.SIGHUP:
				log.Info("got SIGHUP, reloading config")
				reply := make(chan error, 1)
				eng.Control() <- engine.Reload{Reply: reply}
				if err := <-reply; err != nil {
					log.WithError(err).Error("reload failed, keeping previous config")
				}
			default:
				if interrupted {
					log.Warn("second interrupt, forcing exit")
					os.Exit(engine.ExitForcedByInt)
				}
				interrupted = true
				log.Info("shutting down")
				eng.Control() <- engine.Exit{}
			}
		}
	}()

	return eng.Run()
}
