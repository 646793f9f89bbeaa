package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig = "config"
	flagOutput = "output"
)

const (
	// App name
	appName = "market-pulse"
	// version represents the program based on the git tag
	version = "v0.1.0"
	// commit represents the program based on the git commit
	commit = "dev"
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "Live crypto market feed over WebSocket"
	app.Version = version

	configFlag := &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "Configuration `FILE` (optional; environment and .env override it)",
		EnvVars: []string{"MARKET_PULSE_CONFIG"},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "version",
			Usage:  "Application version and build",
			Action: versionCmd,
		},
		{
			Name:   "run",
			Usage:  "Run the market feed server",
			Action: run,
			Flags:  []cli.Flag{configFlag},
		},
		{
			Name:   "config",
			Usage:  "Print the effective configuration",
			Action: configCmd,
			Flags: []cli.Flag{
				configFlag,
				&cli.StringFlag{
					Name:    flagOutput,
					Aliases: []string{"o"},
					Usage:   "Write the configuration to `FILE` instead of stdout",
				},
			},
		},
	}
	app.DefaultCommand = "run"

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func versionCmd(*cli.Context) error {
	fmt.Printf("%s %s (%s)\n", appName, version, commit)
	return nil
}
