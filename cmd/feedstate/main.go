package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"feedstate/internal/ingest"
	"feedstate/internal/obs"
	"feedstate/internal/ops"
	"feedstate/internal/recorder"
	"feedstate/internal/state"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("feedstate: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "config.json", "path of the JSON config file")
	replayFlag := flag.String("replay", "", "print the BBA records recorded under this directory and exit")
	statusFlag := flag.Duration("status", 30*time.Second, "interval of the status log, zero disables it")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	if *replayFlag != "" {
		return replay(ctx, *replayFlag)
	}

	loaded, err := ops.Load(*configFlag)
	if err != nil {
		return err
	}

	if p := loaded.File.Profiling; p.ServerAddress != "" {
		profiler, err := startProfiler(p)
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	use := ingest.NewUsecase(loaded.IngestOption(), obs.NewMetrics())

	exchanges, err := loaded.Exchanges()
	if err != nil {
		return err
	}
	for _, ex := range exchanges {
		if err := use.Register(ex); err != nil {
			return err
		}
	}

	dumpPath := loaded.File.StateDump
	if dumpPath != "" {
		if err := restore(use, dumpPath); err != nil {
			return err
		}
	}

	if loaded.File.RecorderEnabled() {
		sinks, err := loaded.Sinks()
		if err != nil {
			return err
		}
		exporter, err := recorder.NewExporter(loaded.RecorderConfig(), use.SeriesStore(), sinks...)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return err
		}
		if err := use.AddTask("recorder", exporter.Run); err != nil {
			return err
		}
	}

	if *statusFlag > 0 {
		if err := use.AddTask("status", statusLoop(use, *statusFlag)); err != nil {
			return err
		}
	}

	logs.Infof("feedstate starting, exchanges: %v", use.Exchanges())
	runErr := use.Run(ctx)

	if dumpPath != "" {
		if err := state.WriteDump(dumpPath, use.Dump()); err != nil {
			logs.Errorf("write state dump %s failed, err: %+v", dumpPath, err)
		} else {
			logs.Infof("state dump written to %s", dumpPath)
		}
	}
	logs.Info("feedstate stopped")
	return runErr
}

func restore(use *ingest.Usecase, path string) error {
	d, err := state.ReadDump(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := use.Restore(d); err != nil {
		return err
	}
	logs.Infof("state restored from %s, open orders: %d, positions: %d", path, len(d.OpenOrders), len(d.Positions))
	return nil
}

func statusLoop(use *ingest.Usecase, interval time.Duration) ingest.Task {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				logStatus(use)
			}
		}
	}
}

func logStatus(use *ingest.Usecase) {
	snap := use.Metrics()
	counters := make(map[string]uint64, len(snap.Counters))
	for c, v := range snap.Counters {
		counters[c.String()] = v
	}
	logs.Infof("status counters: %v, merge latency avg: %s, event latency avg: %s",
		counters, snap.MergeLatency.Avg, snap.EventLatency.Avg)

	for _, ex := range use.Exchanges() {
		eq, err := use.Equity(ex)
		if err != nil {
			continue
		}
		updated := use.BalancesUpdatedAt(ex)
		if len(eq.Deferred) != 0 {
			logs.Infof("status %s equity %s %s, balances at %s, deferred: %v", ex, eq.Total, eq.Quote, updated.Format(time.RFC3339), eq.Deferred)
			continue
		}
		logs.Infof("status %s equity %s %s, balances at %s", ex, eq.Total, eq.Quote, updated.Format(time.RFC3339))
	}
}

func replay(ctx context.Context, dir string) error {
	enc := json.NewEncoder(os.Stdout)
	return recorder.Replay(ctx, recorder.PlaybackConfig{Dir: dir}, func(r recorder.Record) error {
		return enc.Encode(r)
	})
}

func startProfiler(cfg ops.ProfilingConfig) (*pyroscope.Profiler, error) {
	name := cfg.Application
	if name == "" {
		name = "feedstate"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return profiler, nil
}
