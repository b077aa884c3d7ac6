package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/go-pkgz/syncs"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/randlist/app/bridge"
	"github.com/umputun/randlist/app/storage"
	"github.com/umputun/randlist/app/updater"
	"github.com/umputun/randlist/app/web"
)

var opts struct {
	Store struct {
		Type string `long:"type" env:"TYPE" choice:"memory" choice:"file" choice:"sqlite" default:"sqlite" description:"storage type"`
		Path string `long:"path" env:"PATH" default:"randlist.db" description:"storage location, db file or directory"`
		Key  string `long:"key" env:"KEY" default:"random-list-save" description:"storage slot name"`
	} `group:"store" namespace:"store" env-namespace:"RANDLIST_STORE"`

	Codec string `long:"codec" env:"RANDLIST_CODEC" choice:"json" choice:"yaml" default:"json" description:"saved state format"`
	Node  string `long:"node" env:"RANDLIST_NODE" default:"root" description:"mount node id passed to the front-end"`

	Web struct {
		Address   string  `long:"address" env:"ADDRESS" default:":8080" description:"web server listen address"`
		StaticDir string  `long:"static" env:"STATIC" description:"front-end bundle directory"`
		AuthHash  string  `long:"auth-hash" env:"AUTH_HASH" description:"bcrypt hash of api password"`
		SaveRate  float64 `long:"rate" env:"RATE" default:"10" description:"max state saves per second per client"`
	} `group:"web" namespace:"web" env-namespace:"RANDLIST_WEB"`

	Update struct {
		Enabled  bool   `long:"enabled" env:"ENABLED" description:"watch front-end bundle for updates"`
		Schedule string `long:"schedule" env:"SCHEDULE" default:"@every 1m" description:"bundle check schedule"`
	} `group:"update" namespace:"update" env-namespace:"RANDLIST_UPDATE"`

	Repeater struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"1" description:"how many times to try failed state write"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"100ms" description:"initial duration"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"3" description:"backoff factor"`
		Jitter   bool          `long:"jitter" env:"JITTER" description:"jitter"`
	} `group:"repeater" namespace:"repeater" env-namespace:"RANDLIST_REPEATER"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		Debug           bool   `long:"dbg" env:"DEBUG" description:"debug mode"`
		Filename        string `long:"file" env:"FILE" description:"log file, stdout if empty"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"RANDLIST_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("randlist %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run wires store, bridge, web host and updater and blocks until ctx canceled or any part fails
func run(ctx context.Context) error {
	store, closeStore, err := makeStore()
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := bridge.ParseCodec(opts.Codec)
	if err != nil {
		return err
	}

	watcher := updater.New(makeWatchDir(), opts.Update.Schedule)
	defer watcher.Stop()

	server := web.New(web.Config{
		Version:   revision,
		StaticDir: opts.Web.StaticDir,
		AuthHash:  opts.Web.AuthHash,
		SaveRate:  opts.Web.SaveRate,
		Assets:    watcher,
	})

	brdg := bridge.New(store, bridge.Params{
		Key:      opts.Store.Key,
		Node:     opts.Node,
		Codec:    codec,
		Repeater: makeRepeater(),
		Updater:  watcher,
	})
	log.Printf("[INFO] storage %s, key %q", store, opts.Store.Key)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp := syncs.NewErrSizedGroup(2)
	grp.Go(func() error {
		defer cancel() // bridge done, nothing to serve
		return brdg.Run(ctx, server)
	})
	grp.Go(func() error {
		defer cancel()
		return server.Run(ctx, opts.Web.Address)
	})
	return grp.Wait()
}

type namedStore interface {
	bridge.Store
	fmt.Stringer
}

// makeStore creates storage by type and returns closer for it
func makeStore() (namedStore, func(), error) {
	noop := func() {}
	switch opts.Store.Type {
	case "memory":
		return storage.NewMemory(), noop, nil
	case "file":
		f, err := storage.NewFile(opts.Store.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to make file storage: %w", err)
		}
		return f, noop, nil
	case "sqlite":
		s, err := storage.NewSQLite(opts.Store.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to make sqlite storage at %q: %w", opts.Store.Path, err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Printf("[WARN] failed to close storage: %v", err)
			}
		}, nil
	}
	return nil, noop, errors.New("unknown storage type " + opts.Store.Type)
}

func makeRepeater() bridge.Repeater {
	if opts.Repeater.Attempts <= 1 {
		return repeater.New(&strategy.Once{})
	}
	return repeater.New(&strategy.Backoff{Repeats: opts.Repeater.Attempts, Duration: opts.Repeater.Duration,
		Factor: opts.Repeater.Factor, Jitter: opts.Repeater.Jitter})
}

// makeWatchDir returns bundle directory to watch, empty if updates disabled or bundle embedded
func makeWatchDir() string {
	if !opts.Update.Enabled {
		return ""
	}
	return strings.TrimSpace(opts.Web.StaticDir)
}

// setupLogs configures lgr and returns the writer used for log output
func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return os.Stdout
	}

	var out io.Writer = os.Stdout
	if opts.Log.Filename != "" {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	if opts.Log.Debug {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return out
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM or SIGINT
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
