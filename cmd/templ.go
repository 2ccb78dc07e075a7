package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
warpmulti drives a pool of transfers (http, https, ftp, ftps, sftp) on a
background worker and reports back once every transfer has finished.
`

const (
	FetchDescription = `The fetch command downloads every given url as one pool.
The pool runs on a background worker; progress is shown per
transfer and a summary is printed when the pool completes.

With --cron the pool is run again at every occurrence of the
5-field cron expression until interrupted.

Example:
        warpmulti fetch --dir ./out https://host/a.iso sftp://host/b.tar
        warpmulti fetch --cron "0 3 * * *" https://host/nightly.tar

`
	HistoryDescription = `The history command lists finished pool runs, most
recent first.

Example:
        warpmulti history --limit 20

`
	DaemonDescription = `The daemon command starts the notification daemon. Clients
submit pools over JSON-RPC (WebSocket, HTTP or the local socket)
and receive a pool.completed notification when each one finishes.

Example:
        warpmulti daemon --log-format json

`
	CredsDescription = `The creds command stores ftp and sftp logins in the operating
system keyring. Stored logins are used for urls without userinfo.

Example:
        warpmulti creds set --user alice --password s3cret sftp://files.local
        warpmulti creds delete sftp://files.local

`
)
