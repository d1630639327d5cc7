package commands

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pangeo-forge/aws-bakery/internal/config"
	"github.com/pangeo-forge/aws-bakery/internal/di"
)

// newContainer loads the bakery config and builds the dependency
// container every command action pulls from.
func newContainer(c *cli.Context) (di.Container, *config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, nil, err
	}

	container, err := di.New(
		di.WithProviders(func() *config.Config { return cfg }),
	)
	if err != nil {
		return nil, nil, err
	}
	return container, cfg, nil
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
