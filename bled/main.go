package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

var runFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "device-name",
		Value: "NetTool",
		Usage: "local name advertised over BLE",
	},
	cli.IntFlag{
		Name:  "port",
		Value: 8080,
		Usage: "origin HTTP port to forward requests to",
	},
	cli.StringFlag{
		Name:  "status-file",
		Value: bleproxy.DefaultStatusFile,
		Usage: "path to write the daemon's status file",
	},
	cli.StringFlag{
		Name:  "log-level",
		Value: "INFO",
		Usage: "default log level (CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG); overridden by NETTOOL_LOG_LEVEL",
	},
}

func parseLevel(s string) logging.Level {
	level, err := logging.LogLevel(s)
	if err != nil {
		return logging.INFO
	}
	return level
}

func run(c *cli.Context) error {
	log := bleproxy.SetupLogging("bled", parseLevel(c.String("log-level")))

	cfg := Config{
		DeviceName: c.String("device-name"),
		HTTPPort:   c.Int("port"),
		StatusFile: c.String("status-file"),
	}

	d, err := Start(cfg, log)
	if err != nil {
		log.Critical("startup failed:", err)
		return cli.NewExitError(err.Error(), 1)
	}

	WaitForSignal(log)
	d.Stop()
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "bled"
	app.Usage = "exposes a local HTTP server over a BLE GATT service"
	app.Flags = runFlags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
