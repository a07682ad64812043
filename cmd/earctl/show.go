package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DIMO-Network/ear/pkg/ear"
	"github.com/urfave/cli/v2"
	cose "github.com/veraison/go-cose"
)

var cmdShow = &cli.Command{
	Name:      "show",
	Usage:     "Decode a token without checking its signature",
	ArgsUsage: "<token-file>",
	Action:    runShow,
	Flags: []cli.Flag{
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

func runShow(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return errors.New("expected exactly one token file argument")
	}
	raw, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}

	var token ear.Ear
	switch format := ctx.String("format"); format {
	case "jwt":
		payload, err := jwtPayload(strings.TrimSpace(string(raw)))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(payload, &token); err != nil {
			return err
		}
	case "cose":
		var msg cose.Sign1Message
		if err := msg.UnmarshalCBOR(raw); err != nil {
			return fmt.Errorf("failed to parse COSE message: %w", err)
		}
		if err := token.UnmarshalCBOR(msg.Payload); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q, want jwt or cose", format)
	}
	logger.Warn().Msg("Signature not checked.")

	return printClaims(ctx.String("output"), &token)
}

// jwtPayload extracts the claims-set bytes from a JWS compact serialization
// without verifying it.
func jwtPayload(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token is not a JWS compact serialization")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}
