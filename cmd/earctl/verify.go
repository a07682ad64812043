package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DIMO-Network/ear/pkg/ear"
	"github.com/urfave/cli/v2"
)

var cmdVerify = &cli.Command{
	Name:      "verify",
	Usage:     "Verify a signed token and print its claims-set",
	ArgsUsage: "<token-file>",
	Action:    runVerify,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "key",
			Aliases:  []string{"k"},
			Required: true,
			Usage:    "JWK public verification key file",
		},
		&cli.StringFlag{
			Name:    "alg",
			Aliases: []string{"a"},
			Value:   "ES256",
			Usage:   "expected signing algorithm",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "jwt",
			Usage:   "token envelope, jwt or cose",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the claims-set to a file instead of stdout",
		},
	},
}

func runVerify(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return errors.New("expected exactly one token file argument")
	}
	raw, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	key, err := os.ReadFile(ctx.String("key"))
	if err != nil {
		return err
	}
	alg, err := ear.ParseAlgorithm(ctx.String("alg"))
	if err != nil {
		return err
	}

	var token *ear.Ear
	switch format := ctx.String("format"); format {
	case "jwt":
		token, err = ear.VerifyJWT(strings.TrimSpace(string(raw)), alg, key)
	case "cose":
		token, err = ear.VerifyCOSE(raw, alg, key)
	default:
		return fmt.Errorf("unknown format %q, want jwt or cose", format)
	}
	if err != nil {
		return err
	}
	logger.Info().Str("alg", alg.String()).Msg("Signature verified.")

	return printClaims(ctx.String("output"), token)
}

// printClaims writes the claims-set as indented JSON to the given file, or
// to stdout when path is empty or "-".
func printClaims(path string, token *ear.Ear) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
