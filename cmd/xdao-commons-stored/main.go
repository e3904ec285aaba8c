// xdao-commons-stored serves a snapshot store over gRPC so peers without a
// shared filesystem can exchange workspace snapshots and heads.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/commons/config"
	"xdao.co/commons/storage/grpcstore"
	"xdao.co/commons/storage/registry"

	_ "xdao.co/commons/storage/localfs"
	_ "xdao.co/commons/storage/redisstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath    string
	listen        string
	metricsListen string
	backend       string
	dir           string
	listBackends  bool
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("xdao-commons-stored", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "configuration file")
	fs.StringVar(&opts.listen, "listen", "127.0.0.1:7777", "gRPC listen address")
	fs.StringVar(&opts.metricsListen, "metrics-listen", "", "serve prometheus metrics on this address")
	fs.StringVar(&opts.backend, "backend", "", "store backend (default store.backend from the config)")
	fs.StringVar(&opts.dir, "dir", "", "localfs directory (default workspace_dir from the config)")
	fs.BoolVar(&opts.listBackends, "list-backends", false, "list supported backends and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	log := cfg.NewLogger(errOut)

	target, _ := cfg.StoreTargets()
	if opts.backend != "" {
		target.Backend = opts.backend
	}
	if opts.dir != "" {
		target.Options.Dir = opts.dir
	}
	store, err := registry.Open(ctx, target.Backend, registry.UsageDaemon, target.Options)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", opts.listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := grpcstore.NewMetrics(reg)

	srv := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryInterceptor()))
	grpcstore.RegisterStoreServer(srv, &grpcstore.Server{Store: store})

	var metricsSrv *http.Server
	if opts.metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: opts.metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		srv.GracefulStop()
	}()

	log.Info("xdao-commons-stored listening", "addr", lis.Addr().String(), "backend", target.Backend, "metrics", opts.metricsListen)
	if err := srv.Serve(lis); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
