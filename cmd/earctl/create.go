package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DIMO-Network/ear/pkg/ear"
	"github.com/DIMO-Network/ear/pkg/trust"
	"github.com/urfave/cli/v2"
)

var cmdCreate = &cli.Command{
	Name:  "create",
	Usage: "Build an attestation result token and sign it",
	Description: `Signs a claims-set with the given private key. The claims-set is read from
the --claims JSON file, or assembled from the --profile, --verifier-* and
--submod flags when no file is given.`,
	Action: runCreate,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "claims",
			Aliases: []string{"c"},
			Usage:   "JSON claims-set file to sign",
		},
		&cli.StringFlag{
			Name:     "key",
			Aliases:  []string{"k"},
			Required: true,
			Usage:    "PEM-encoded private signing key file",
		},
		&cli.StringFlag{
			Name:    "alg",
			Aliases: []string{"a"},
			Value:   "ES256",
			Usage:   "signing algorithm (ES256, ES384, ES512, EdDSA, PS256, PS384, PS512)",
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
			Usage:   "output file (defaults to ear.jwt or ear.cbor)",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "profile identifier for a flag-built token",
		},
		&cli.StringFlag{
			Name:  "verifier-build",
			Usage: "verifier build string for a flag-built token",
		},
		&cli.StringFlag{
			Name:  "verifier-developer",
			Usage: "verifier developer URI for a flag-built token",
		},
		&cli.StringSliceFlag{
			Name:  "submod",
			Usage: "submodule to include, as name or name=status, repeatable",
		},
		&cli.StringFlag{
			Name:  "nonce",
			Usage: "text nonce to embed in the token",
		},
	},
}

func runCreate(ctx *cli.Context) error {
	alg, err := ear.ParseAlgorithm(ctx.String("alg"))
	if err != nil {
		return err
	}

	token, err := loadOrBuildClaims(ctx)
	if err != nil {
		return err
	}

	key, err := os.ReadFile(ctx.String("key"))
	if err != nil {
		return err
	}

	var (
		signed []byte
		out    = ctx.String("output")
	)
	switch format := ctx.String("format"); format {
	case "jwt":
		s, err := token.SignJWT(alg, key)
		if err != nil {
			return err
		}
		signed = []byte(s)
		if out == "" {
			out = "ear.jwt"
		}
	case "cose":
		signed, err = token.SignCOSE(alg, key)
		if err != nil {
			return err
		}
		if out == "" {
			out = "ear.cbor"
		}
	default:
		return fmt.Errorf("unknown format %q, want jwt or cose", format)
	}

	if err := os.WriteFile(out, signed, 0o644); err != nil {
		return err
	}
	logger.Info().Str("file", out).Str("alg", alg.String()).Msg("Token written.")
	return nil
}

// loadOrBuildClaims reads the claims-set from the --claims file, or builds a
// fresh one from the token flags, stamped with the current time.
func loadOrBuildClaims(ctx *cli.Context) (*ear.Ear, error) {
	if path := ctx.String("claims"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var token ear.Ear
		if err := json.Unmarshal(data, &token); err != nil {
			return nil, fmt.Errorf("failed to parse claims-set %s: %w", path, err)
		}
		return &token, nil
	}

	token := ear.New()
	token.Profile = ctx.String("profile")
	token.IssuedAt = time.Now().Unix()
	token.VerifierID = ear.VerifierID{
		Build:     ctx.String("verifier-build"),
		Developer: ctx.String("verifier-developer"),
	}
	for _, spec := range ctx.StringSlice("submod") {
		name, status, found := strings.Cut(spec, "=")
		appraisal := ear.NewAppraisal()
		if found {
			tier, err := trust.ParseTier(status)
			if err != nil {
				return nil, fmt.Errorf("submod %s: %w", name, err)
			}
			appraisal.Status = tier
		}
		token.Submods[name] = appraisal
	}
	if nonce := ctx.String("nonce"); nonce != "" {
		n, err := ear.NewTextNonce(nonce)
		if err != nil {
			return nil, err
		}
		token.Nonce = n
	}
	return token, nil
}
