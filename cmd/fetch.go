package cmd

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/warpmulti/cmd/common"
	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/internal/recur"
	"github.com/warpdl/warpmulti/pkg/async"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

var (
	fetchDir        string
	fetchCron       string
	fetchScript     string
	fetchProxy      string
	fetchMaxWorkers int64
	fetchQuiet      bool

	fetchFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "dir, d",
			Usage:       "directory to save files in",
			Value:       ".",
			Destination: &fetchDir,
		},
		cli.StringFlag{
			Name:        "cron",
			Usage:       "re-run the pool on this 5-field cron schedule",
			Destination: &fetchCron,
		},
		cli.StringFlag{
			Name:        "on-complete",
			Usage:       "JavaScript file defining onComplete(summary)",
			Destination: &fetchScript,
		},
		cli.StringFlag{
			Name:        "proxy, x",
			Usage:       "http, https or socks5 proxy url",
			Destination: &fetchProxy,
		},
		cli.Int64Flag{
			Name:        "max-workers",
			Usage:       "limit concurrently running pool workers (0 = unlimited)",
			Destination: &fetchMaxWorkers,
		},
		cli.BoolFlag{
			Name:        "quiet, q",
			Usage:       "do not show progress bars",
			Destination: &fetchQuiet,
		},
	}
)

// errCancelled ends a fetch interrupted by a signal.
var errCancelled = errors.New("interrupted")

// fetchJob runs one pool, re-arming it on a cron schedule when asked. All
// methods except wait run on the loop goroutine.
type fetchJob struct {
	urls     []string
	dir      string
	cron     string
	pool     *pool.Pool
	runner   *async.Runner
	loop     later.Scheduler
	progress *mpb.Progress
	log      logger.Logger
	now      func() time.Time
	// maxRuns stops a cron job after that many runs. Zero means never.
	maxRuns int

	handle *async.Handle
	runs   int
	done   chan error
}

func newFetchJob(p *pool.Pool, r *async.Runner, loop later.Scheduler, urls []string, dir, cron string, l logger.Logger) *fetchJob {
	j := &fetchJob{
		urls:   urls,
		dir:    dir,
		cron:   cron,
		pool:   p,
		runner: r,
		loop:   loop,
		log:    logger.OrNop(l),
		now:    time.Now,
		done:   make(chan error, 1),
	}
	p.OnComplete(j.completed)
	return j
}

// start schedules the first run.
func (j *fetchJob) start() error {
	return j.loop.Schedule(func(interface{}) { j.run() }, nil, 0)
}

func (j *fetchJob) run() {
	if err := j.submit(); err != nil {
		j.finish(err)
	}
}

func (j *fetchJob) submit() error {
	for _, u := range j.urls {
		t := &engine.Transfer{URL: u, Destination: j.dir}
		if j.progress != nil {
			j.attachBar(t)
		}
		if err := j.pool.Add(t); err != nil {
			return fmt.Errorf("%s: %w", engine.StripURLCredentials(u), err)
		}
	}
	h, err := j.runner.RunAsync(j.pool)
	if err != nil {
		return err
	}
	j.handle = h
	return nil
}

func (j *fetchJob) attachBar(t *engine.Transfer) {
	name := path.Base(engine.StripURLCredentials(t.URL))
	bar := common.NewTransferBar(j.progress, name)
	t.OnSize = func(n int64) {
		if n > 0 {
			bar.SetTotal(n, false)
		}
	}
	t.OnProgress = func(n int) { bar.IncrBy(n) }
	t.OnDone = func(r engine.Result) { common.FinishBar(bar, r.Err) }
}

// completed is the pool's completion hook.
func (j *fetchJob) completed(c pool.Completion) {
	if j.handle != nil {
		j.handle.Release()
		j.handle = nil
	}
	j.runs++
	err := runError(c)
	fmt.Printf("pool %s: %d/%d transfers ok, %s in %s\n",
		c.PoolID, len(c.Results)-c.Failed(), len(c.Results),
		humanize.Bytes(uint64(c.Bytes())),
		c.Outcome.Finished.Sub(c.Outcome.Started).Round(time.Millisecond))

	if j.cron == "" || c.Outcome.Cancelled || (j.maxRuns > 0 && j.runs >= j.maxRuns) {
		j.finish(err)
		return
	}
	if err != nil {
		j.log.Warning("run %d of pool %s: %v", j.runs, c.PoolID, err)
	}
	delay, derr := recur.Delay(j.cron, j.now())
	if derr != nil {
		j.finish(derr)
		return
	}
	j.log.Info("next run of pool %s in %s", c.PoolID, delay.Round(time.Second))
	if serr := j.loop.Schedule(func(interface{}) { j.run() }, nil, delay); serr != nil {
		j.finish(serr)
	}
}

func runError(c pool.Completion) error {
	switch {
	case c.Outcome.Cancelled:
		return errCancelled
	case c.Outcome.Err != nil:
		return c.Outcome.Err
	case c.Failed() > 0:
		return fmt.Errorf("%d of %d transfers failed", c.Failed(), len(c.Results))
	}
	return nil
}

func (j *fetchJob) finish(err error) {
	select {
	case j.done <- err:
	default:
	}
}

func fetch(ctx *cli.Context) error {
	urls := []string(ctx.Args())
	if len(urls) == 0 {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no url provided"))
	}
	if urls[0] == "help" {
		return cli.ShowCommandHelp(ctx, "fetch")
	}
	if fetchCron != "" {
		if err := recur.Validate(fetchCron); err != nil {
			return common.PrintErrWithCmdHelp(ctx, err)
		}
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "load_config", err)
		return err
	}
	if fetchProxy != "" {
		cfg.Proxy = fetchProxy
	}
	if ctx.IsSet("max-workers") {
		cfg.MaxWorkers = fetchMaxWorkers
	}
	if fetchScript != "" {
		cfg.ScriptPath = fetchScript
	}

	sigCtx, cancel := setupShutdownHandler()
	defer cancel()

	l := newConsoleLogger()
	comps, err := newComponents(sigCtx, cfg, l)
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "init", err)
		return err
	}
	defer comps.Close()

	eng, err := comps.newEngine()
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "new_engine", err)
		return err
	}
	defer closeEngine(eng)

	p := pool.New(eng, guard.New())
	for _, h := range comps.hooks() {
		p.OnComplete(h)
	}
	job := newFetchJob(p, comps.runner, comps.loop, urls, fetchDir, fetchCron, l)
	if !fetchQuiet {
		job.progress = mpb.NewWithContext(sigCtx, mpb.WithWidth(64), mpb.WithRefreshRate(120*time.Millisecond))
	}
	if err := job.start(); err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "start", err)
		return err
	}

	err = job.wait(sigCtx.Done())
	if job.progress != nil {
		if err == nil {
			job.progress.Wait()
		} else {
			job.progress.Shutdown()
		}
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "fetch", "run", err)
	}
	return err
}

// wait blocks until the job finishes. After interrupt it gives an in-flight
// run a grace period to deliver its cancelled completion.
func (j *fetchJob) wait(interrupt <-chan struct{}) error {
	select {
	case err := <-j.done:
		return err
	case <-interrupt:
	}
	if j.pool.State() != pool.Running {
		return errCancelled
	}
	select {
	case err := <-j.done:
		return err
	case <-time.After(5 * time.Second):
		return errCancelled
	}
}
