// Servomount exposes a two-axis servo camera mount as a Web Thing.
//
// The servos hang off a PCA9685-style PWM controller on an I2C bus. Each
// servo is a numeric property in the range 0-100; writing a property moves
// the servo. The thing is served over HTTP and WebSocket, and can optionally
// be mirrored to MQTT, recorded to SQLite and InfluxDB, and advertised over
// mDNS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	_ "github.com/nerrad567/servomount/migrations"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor SERVOMOUNT_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newApp builds the command line. Without a subcommand it serves the thing.
func newApp() *cli.App {
	return &cli.App{
		Name:    "servomount",
		Usage:   "serve a servo camera mount as a Web Thing",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"SERVOMOUNT_CONFIG"},
				Value:   defaultConfigPath,
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
		Commands: []*cli.Command{
			tokenCommand(),
			migrateCommand(),
		},
	}
}
