// Command seltable-serve serves a dataset page by page over HTTP, for trying
// remote tables without a real backend:
//
//	seltable-serve -dataset people.jsonl &
//	seltable http://localhost:8080/v1/records
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulldump/box"
	"github.com/fulldump/goconfig"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/seltable/internal/server"
	"github.com/vanderheijden86/seltable/pkg/loader"
	"github.com/vanderheijden86/seltable/pkg/record"
	"github.com/vanderheijden86/seltable/pkg/testutil"
	"github.com/vanderheijden86/seltable/pkg/version"
	"github.com/vanderheijden86/seltable/pkg/watcher"
)

// Config is read from flags and environment by goconfig.
type Config struct {
	HttpAddr          string `usage:"HTTP address"`
	Dataset           string `usage:"JSONL or JSON array file to serve; generated records when empty"`
	Generate          int    `usage:"number of generated records when no dataset is given"`
	Seed              int    `usage:"seed for generated records"`
	PageSize          int    `usage:"page size when a request names none"`
	NestKey           string `usage:"query parameter holding a JSON params object"`
	LatencyMs         int    `usage:"delay every response by this many milliseconds"`
	FailEvery         int    `usage:"reject every Nth request with code 2"`
	EnableCompression bool   `usage:"zstd/gzip encode responses"`
	Watch             bool   `usage:"reload the dataset when the file changes"`
	AccessLog         bool   `usage:"log every request to stdout"`
	ShowConfig        bool   `usage:"print config"`
	Version           bool   `usage:"show version and exit"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HttpAddr:          "127.0.0.1:8080",
		Generate:          200,
		Seed:              42,
		PageSize:          20,
		NestKey:           server.DefaultNestKey,
		EnableCompression: true,
		Watch:             true,
	}
}

func main() {
	c := Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", version.Version)
		return
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c); err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(1)
	}
}

func loadRecords(c Config) ([]record.Record, error) {
	if c.Dataset == "" {
		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(c.Seed)
		return testutil.New(cfg).Records(c.Generate), nil
	}
	return loader.LoadFile(c.Dataset, loader.ParseOptions{})
}

// handler mounts the records API and the Prometheus endpoint.
func handler(c Config, s *server.Server, reg *prometheus.Registry) http.Handler {
	b := server.Build(s)
	if c.EnableCompression {
		b.WithInterceptors(server.Compression)
	}
	if c.AccessLog {
		b.WithInterceptors(server.AccessLog(log.New(os.Stdout, "ACCESS: ", log.LstdFlags)))
	}
	b.WithInterceptors(
		server.RecoverFromPanic,
		server.PrettyErrorInterceptor,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", box.Box2Http(b))
	return mux
}

func run(ctx context.Context, c Config) error {
	records, err := loadRecords(c)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := server.New(records, server.Options{
		NestKey:   c.NestKey,
		PageSize:  c.PageSize,
		Latency:   time.Duration(c.LatencyMs) * time.Millisecond,
		FailEvery: c.FailEvery,
		Metrics:   server.NewMetrics(reg),
	})

	srv := &http.Server{
		Addr:              c.HttpAddr,
		Handler:           handler(c, s, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	var w *watcher.Watcher
	if c.Dataset != "" && c.Watch {
		w, err = watcher.New(c.Dataset)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		return err
	}
	log.Printf("serving %d records on http://%s/v1/records", s.Len(), ln.Addr())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if w != nil {
		g.Go(func() error {
			return reloadOnChange(ctx, w, c, s)
		})
	}

	return g.Wait()
}

func reloadOnChange(ctx context.Context, w *watcher.Watcher, c Config, s *server.Server) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			records, err := loadRecords(c)
			if err != nil {
				log.Println("reload:", err)
				continue
			}
			s.Replace(records)
			log.Printf("reloaded %d records", len(records))
		}
	}
}
