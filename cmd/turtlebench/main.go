package main

/*
# Running
Usage: ./turtlebench [ -c config.yaml ] [ -d ] [ --serve ]

# Configuration
Config file path via -c/--config; every key can also be set through an
environment variable prefixed TURTLE_ (e.g. TURTLE_STACK_SIZE).

# Logging
Logging to stderr via logrus (its default output).
*/

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/pborman/getopt/v2"
	log "github.com/sirupsen/logrus"

	"github.com/geoturtle/turtle/internal/conf"
	"github.com/geoturtle/turtle/internal/httpapi"
	"github.com/geoturtle/turtle/pkg/stack"
)

var flagHelp bool
var flagVersion bool
var flagDebugOn bool
var flagConfigFilename string
var flagServe bool
var flagStackPath string

func init() {
	initCommandOptions()
}

func initCommandOptions() {
	getopt.FlagLong(&flagHelp, "help", '?', "Show command usage")
	getopt.FlagLong(&flagConfigFilename, "config", 'c', "", "config file name")
	getopt.FlagLong(&flagDebugOn, "debug", 'd', "Set logging level to TRACE")
	getopt.FlagLong(&flagVersion, "version", 'v', "Output the version information")
	getopt.FlagLong(&flagServe, "serve", 0, "Start the introspection HTTP server")
	getopt.FlagLong(&flagStackPath, "stack-path", 0, "", "Path to the tile directory")
}

func main() {
	getopt.Parse()

	if flagHelp {
		getopt.Usage()
		os.Exit(1)
	}

	if flagVersion {
		fmt.Printf("%s %s\n", conf.AppConfig.Name, conf.AppConfig.Version)
		os.Exit(1)
	}

	log.Infof("----  %s - Version %s ----------", conf.AppConfig.Name, conf.AppConfig.Version)

	if err := conf.InitConfig(flagConfigFilename, flagDebugOn); err != nil {
		log.Fatalf("config: %v", err)
	}

	if flagStackPath != "" {
		conf.Configuration.Stack.Path = flagStackPath
	}

	if flagDebugOn || conf.Configuration.Debug {
		log.SetLevel(log.TraceLevel)
		log.Debug("Log level = TRACE")
	}
	conf.DumpConfig()

	var mu sync.Mutex
	s, err := stack.New(
		conf.Configuration.Stack.Path,
		conf.Configuration.Stack.Size,
		conf.Configuration.Stack.Format,
		func() error { mu.Lock(); return nil },
		func() error { mu.Unlock(); return nil },
	)
	if err != nil {
		log.Fatalf("stack: %v", err)
	}
	defer s.Close()

	if flagServe || conf.Configuration.Server.Enabled {
		serve(s)
		return
	}

	log.Info("turtlebench ready; pass --serve to start the introspection server")
}

func serve(s *stack.Stack) {
	srv := httpapi.New(s, conf.Configuration.Server.ApiKey)
	addr := fmt.Sprintf(":%d", conf.Configuration.Server.Port)
	log.Infof("httpapi listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("httpapi: %v", err)
	}
}
