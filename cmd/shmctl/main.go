// shmctl maps a shared-memory region the way a simulator does and lets an
// operator inspect and patch it interactively.
//
// Usage:
//
//	shmctl [flags]
//
// Flags:
//
//	-c, --config          JSONC config file (flags override it)
//	-p, --path            Backing object path (default /dev/shm/cosim-ram, Local\cosim-ram on Windows)
//	-n, --name            Region name (default: base name of path)
//	    --offset          Offset into the backing object
//	-s, --size            Region size in bytes
//	    --segment-size    Segment size override
//	    --open-retries    Retries while the backing object does not exist
//	-b, --base            Registration base address (repeatable)
//	    --trace-invalidations  Print every translation-cache invalidation
//	    --listen          Serve /metrics, /live and /ready on this address
//
// Commands (in REPL):
//
//	info                     Show region info
//	segments                 Show the segment table
//	touch <i>                Materialize segment i
//	peek <off> [n]           Hex dump n bytes (default 64)
//	read{8,16,32,64} <off>   Read a word
//	poke{8,16,32,64} <off> <v>  Write a word
//	fill <off> <n> <byte>    Fill n bytes
//	dump <file> [off n]      Write a raw image atomically
//	refresh                  Drop cached registration points
//	help                     Show this help
//	exit / quit / q          Exit
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/srediag/cosim-shm/adapter"
	"github.com/srediag/cosim-shm/api"
	"github.com/srediag/cosim-shm/pkg/shm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shmctl:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath         string
	bases              []uint64
	traceInvalidations bool
	listen             string
}

func parseFlags(args []string) (shm.Config, options, error) {
	var opts options
	fs := flag.NewFlagSet("shmctl", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "JSONC config file")
	path := fs.StringP("path", "p", shm.DefaultPath, "backing object path")
	name := fs.StringP("name", "n", "", "region name")
	offset := fs.Int64("offset", 0, "offset into the backing object")
	size := fs.Uint64P("size", "s", 0, "region size in bytes")
	segmentSize := fs.Uint64("segment-size", 0, "segment size override")
	retries := fs.Uint64("open-retries", 0, "retries while the backing object does not exist")
	bases := fs.StringSliceP("base", "b", nil, "registration base address (repeatable)")
	fs.BoolVar(&opts.traceInvalidations, "trace-invalidations", false, "print every translation-cache invalidation")
	fs.StringVar(&opts.listen, "listen", "", "serve /metrics, /live and /ready on this address")
	if err := fs.Parse(args); err != nil {
		return shm.Config{}, options{}, err
	}

	cfg := shm.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = shm.LoadConfigFile(opts.configPath); err != nil {
			return shm.Config{}, options{}, err
		}
	}
	if fs.Changed("path") {
		cfg.Path = *path
	}
	if fs.Changed("name") {
		cfg.Name = *name
	}
	if fs.Changed("offset") {
		cfg.Offset = *offset
	}
	if fs.Changed("size") {
		cfg.Size = *size
	}
	if fs.Changed("segment-size") {
		cfg.SegmentSize = *segmentSize
	}
	if fs.Changed("open-retries") {
		cfg.OpenRetries = *retries
	}
	for _, b := range *bases {
		v, err := parseUint(b)
		if err != nil {
			return shm.Config{}, options{}, fmt.Errorf("--base %q: %w", b, err)
		}
		opts.bases = append(opts.bases, v)
	}
	return cfg, opts, shm.VerifyConfig(cfg)
}

// traceUnit is an execution unit that prints the invalidations it receives.
type traceUnit struct{ enabled bool }

func (traceUnit) Name() string { return "trace" }

func (u traceUnit) InvalidateTranslationCache(start, end uint64) {
	if u.enabled {
		fmt.Printf("invalidate [%#x, %#x)\n", start, end)
	}
}

var _ api.TranslationCacheInvalidator = traceUnit{}

func run(args []string) error {
	cfg, opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	router := adapter.NewStaticRouter()
	machine := adapter.NewStaticMachine(router, traceUnit{enabled: opts.traceInvalidations})
	cfg.Machine = machine
	promReg := prometheus.NewRegistry()
	cfg.Registerer = promReg
	cfg = adapter.WithOTel(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := shm.Open(ctx, cfg)
	if err != nil {
		return err
	}
	regions := shm.NewRegistry()
	if err := regions.Add(r); err != nil {
		_ = r.Dispose()
		return err
	}
	defer func() {
		if err := regions.DisposeAll(); err != nil {
			fmt.Fprintln(os.Stderr, "shmctl: dispose:", err)
		}
	}()
	for _, b := range opts.bases {
		router.Register(r.Name(), b)
	}

	if opts.listen != "" {
		srv := serve(opts.listen, promReg, regions)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	repl := &REPL{region: r, out: os.Stdout}
	return repl.Run()
}

func serve(addr string, reg *prometheus.Registry, regions *shm.Registry) *http.Server {
	health := adapter.NewHealthHandler(regions)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "shmctl: listen:", err)
		}
	}()
	return srv
}
