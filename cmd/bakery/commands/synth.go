package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/stack"
)

// SynthCommand returns the synth command printing the template without
// touching AWS.
func SynthCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "synth",
		Usage: "Print the synthesized CloudFormation template",
		Description: `Synthesizes the bakery template from the environment configuration and
prints it. Nothing is sent to AWS.

Examples:
  bakery synth
  bakery synth --format json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: yaml or json",
				Value: "yaml",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("env-file"))
			if err != nil {
				return err
			}

			tpl := stack.Synthesize(cfg)

			var body string
			switch c.String("format") {
			case "yaml":
				body, err = tpl.YAML()
			case "json":
				body, err = tpl.JSON()
			default:
				return fmt.Errorf("unknown format %q, want yaml or json", c.String("format"))
			}
			if err != nil {
				return err
			}

			fmt.Println(body)
			return nil
		},
	}
}
