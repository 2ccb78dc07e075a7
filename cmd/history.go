package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/cmd/common"
	"github.com/warpdl/warpmulti/internal/history"
)

var (
	historyLimit int

	historyFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "show at most this many runs (0 = all)",
			Value:       20,
			Destination: &historyLimit,
		},
	}
)

func showHistory(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "load_config", err)
		return err
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "open", err)
		return err
	}
	defer store.Close()
	runs, err := store.List(context.Background(), historyLimit)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "list", err)
		return err
	}
	printRuns(runs, time.Now())
	return nil
}

func printRuns(runs []history.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Println("no finished runs")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tFINISHED\tTRANSFERS\tFAILED\tSIZE\tDURATION\tWAITS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%s\n",
			r.PoolID.String()[:8],
			humanize.RelTime(r.Finished, now, "ago", "from now"),
			r.Transfers, r.Failed,
			humanize.Bytes(uint64(r.Bytes)),
			r.Duration().Round(time.Millisecond),
			r.Waits,
			r.Error,
		)
	}
	w.Flush()
}
