package cmd

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/cmd/common"
	"github.com/warpdl/warpmulti/internal/creds"
)

var (
	credsUser     string
	credsPassword string

	credsFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "user, u",
			Usage:       "login name",
			Destination: &credsUser,
		},
		cli.StringFlag{
			Name:        "password, p",
			Usage:       "password",
			EnvVar:      "WARPMULTI_PASSWORD",
			Destination: &credsPassword,
		},
	}
)

// parseCredsTarget splits "scheme://host" into the keyring key parts. The
// engine looks logins up by host name only, and ftps shares ftp's entries.
func parseCredsTarget(raw string) (scheme, host string, err error) {
	if raw == "" {
		return "", "", errors.New("no target provided")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	scheme = u.Scheme
	switch scheme {
	case "ftps":
		scheme = "ftp"
	case "ftp", "sftp":
	default:
		return "", "", fmt.Errorf("unsupported scheme %q (want ftp, ftps or sftp)", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("no host in %q", raw)
	}
	return scheme, u.Hostname(), nil
}

func credsSet(ctx *cli.Context) error {
	scheme, host, err := parseCredsTarget(ctx.Args().First())
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if credsUser == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("--user is required"))
	}
	if err := creds.NewStore(nil).Set(scheme, host, credsUser, credsPassword); err != nil {
		common.PrintRuntimeErr(ctx, "creds", "set", err)
		return err
	}
	fmt.Printf("stored login for %s://%s\n", scheme, host)
	return nil
}

func credsDelete(ctx *cli.Context) error {
	scheme, host, err := parseCredsTarget(ctx.Args().First())
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if err := creds.NewStore(nil).Delete(scheme, host); err != nil {
		common.PrintRuntimeErr(ctx, "creds", "delete", err)
		return err
	}
	fmt.Printf("removed login for %s://%s\n", scheme, host)
	return nil
}
