package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var buildArgs BuildArgs

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config-dir",
		Usage:  "configuration directory",
		EnvVar: "WARPMULTI_CONFIG_DIR",
	},
}

func newApp(bArgs BuildArgs) *cli.App {
	return &cli.App{
		Name:                  "warpmulti",
		HelpName:              "warpmulti",
		Usage:                 "Run transfer pools on a background worker.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpmulti <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 append(append([]cli.Flag{}, globalFlags...), fetchFlags...),
		Commands: []cli.Command{
			{
				Name:                   "fetch",
				Aliases:                []string{"f"},
				Usage:                  "download urls as one pool",
				UsageText:              "[flags] <url> [url...]",
				Description:            FetchDescription,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 fetch,
				Flags:                  fetchFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "history",
				Aliases:            []string{"l"},
				Usage:              "list finished pool runs",
				Description:        HistoryDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             showHistory,
				Flags:              historyFlags,
			},
			{
				Name:               "daemon",
				Usage:              "start the notification daemon",
				Description:        DaemonDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				OnUsageError:       common.UsageErrorCallback,
				Action:             getDaemonAction(),
				Flags:              daemonFlags,
			},
			{
				Name:        "creds",
				Usage:       "manage stored ftp/sftp logins",
				Description: CredsDescription,
				Subcommands: []cli.Command{
					{
						Name:         "set",
						Usage:        "store a login",
						UsageText:    "--user U --password P <scheme://host>",
						OnUsageError: common.UsageErrorCallback,
						Action:       credsSet,
						Flags:        credsFlags,
					},
					{
						Name:         "delete",
						Usage:        "remove a login",
						UsageText:    "<scheme://host>",
						OnUsageError: common.UsageErrorCallback,
						Action:       credsDelete,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpmulti",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      fetch,
		HideHelp:    true,
		HideVersion: true,
	}
}

// Execute runs the CLI with args.
func Execute(args []string, bArgs BuildArgs) error {
	buildArgs = bArgs
	app := newApp(bArgs)
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
