package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LivTel/autoguider-sub002/backends"
	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/config"
	"github.com/LivTel/autoguider-sub002/generichttp/camera"
	"github.com/LivTel/autoguider-sub002/imgrec"
	"github.com/LivTel/autoguider-sub002/server"
	"github.com/LivTel/autoguider-sub002/telemetry"
	"github.com/LivTel/autoguider-sub002/util"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "agccd-http.yml"
)

func root() {
	str := `agccd-http exposes control of an autoguider CCD camera over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	agccd-http <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `agccd-http is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Any key may also be
set from the environment with the AGCCD_ prefix and "__" between key segments,
e.g. AGCCD_CCD__DRIVER__NAME=fli.
The command mkconf generates the configuration file with the default values.
There is no need to do this unless you want to start from the prepopulated defaults when making
a config file.

ccd.driver.name selects the camera, andor or fli.  A backend whose vendor library
was not compiled in (build tags andor and fli) is simulated, as is one with
ccd.<name>.simulate set.

Camera startup is retried for a few seconds, the vendor libraries are often not
ready immediately after the camera is powered.

If the files and folders created do not have the permissions you want on linux,
your umask is likely to blame  agccd-http makes them with permission 666, but your
umask is probably the default of 0022 which knocks them down to 444.  Set your
umask to 0000 before running agccd-http to solve this.`
	fmt.Println(str)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return cfg
}

func mkconf() {
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err = config.New(nil).Write(f); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	if err := loadConfig().Write(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("agccd-http version %v\n", Version)
}

// setupLogging configures logrus and returns the camera logger feeding it
func setupLogging(cfg *config.Config) (*ccd.Logger, error) {
	lvl, err := cfg.String("ccd.log.level")
	if err != nil {
		return nil, err
	}
	l, err := log.ParseLevel(lvl)
	if err != nil {
		return nil, err
	}
	log.SetLevel(l)
	filter, err := cfg.String("ccd.log.filter")
	if err != nil {
		return nil, err
	}
	mask, err := ccd.ParseLevel(filter)
	if err != nil {
		return nil, err
	}
	return ccd.NewLogger(ccd.LogrusHandler(log.WithField("component", "ccd")), ccd.BitwiseFilter(mask)), nil
}

// startCamera opens the camera, retrying while it comes up, and applies the
// default field
func startCamera(ctx context.Context, s *ccd.Session, cfg *config.Config) error {
	op := func() error {
		return ccd.Startup(ctx, s, cfg)
	}
	notify := func(err error, d time.Duration) {
		log.WithError(err).Warnf("camera startup failed, retrying in %v", d)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock}, ctx), notify)
	if err != nil {
		return err
	}
	var dims [4]int
	for i, key := range []string{"ccd.field.ncols", "ccd.field.nrows", "ccd.field.x_bin", "ccd.field.y_bin"} {
		if dims[i], err = cfg.Int(key); err != nil {
			return err
		}
	}
	return s.SetupDimensions(dims[0], dims[1], dims[2], dims[3], false, ccd.Window{})
}

// publisher connects to the MQTT broker if one is configured
func publisher(cfg *config.Config) (telemetry.Publisher, func(), error) {
	broker, err := cfg.String("mqtt.broker")
	if err != nil || broker == "" {
		return telemetry.Discard{}, func() {}, err
	}
	clientID, err := cfg.String("mqtt.client_id")
	if err != nil {
		return nil, nil, err
	}
	topic, err := cfg.String("mqtt.topic")
	if err != nil {
		return nil, nil, err
	}
	m, err := telemetry.DialMQTT(broker, clientID, topic)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("broker", broker).Info("publishing telemetry")
	return m, m.Close, nil
}

func recorder(cfg *config.Config) (*imgrec.Recorder, error) {
	rroot, err := cfg.String("recorder.root")
	if err != nil {
		return nil, err
	}
	prefix, err := cfg.String("recorder.prefix")
	if err != nil {
		return nil, err
	}
	enabled, err := cfg.Bool("recorder.enabled")
	if err != nil {
		return nil, err
	}
	return imgrec.New(rroot, prefix, enabled), nil
}

func run() {
	cfg := loadConfig()
	lg, err := setupLogging(cfg)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s := ccd.NewSession(lg, ccd.NewMetrics(reg))

	d, err := backends.Open(cfg, lg)
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Register(d); err != nil {
		log.Fatal(err)
	}
	log.Println("starting camera, the vendor library can hang here.")
	log.Println("Power cycle the camera if this is stuck.")
	if err = startCamera(ctx, s, cfg); err != nil {
		log.Fatal(err)
	}
	log.WithField("capabilities", s.Capabilities()).Info("camera started")

	pub, closePub, err := publisher(cfg)
	if err != nil {
		log.Fatal(err)
	}
	spec, err := cfg.String("telemetry.schedule")
	if err != nil {
		log.Fatal(err)
	}
	sched, err := telemetry.NewScheduler(spec, s, pub)
	if err != nil {
		log.Fatal(err)
	}
	sched.Start()

	rec, err := recorder(cfg)
	if err != nil {
		log.Fatal(err)
	}
	w := camera.NewHTTPCamera(s, rec, pub)

	addr, err := cfg.String("http.addr")
	if err != nil {
		log.Fatal(err)
	}
	hroot, err := cfg.String("http.root")
	if err != nil {
		log.Fatal(err)
	}
	// clean up the submux string
	hndlrS := server.SubMuxSanitize(hroot)
	rtr := chi.NewRouter()
	mux := chi.NewRouter()
	mux.Use(w.Locker().Check)
	w.RT().Bind(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rtr.Mount(hndlrS, mux)

	srv := &http.Server{Addr: addr, Handler: rtr}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.WithError(err).Error("stopping http server")
		}
	}()
	log.Println("now listening for requests at ", addr+hndlrS)
	err = srv.ListenAndServe()
	if err != http.ErrServerClosed {
		log.WithError(err).Error("http server")
	}

	sched.Stop()
	closePub()
	// the signal context is done; the camera gets a fresh one to warm up in
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err = util.MergeErrors(ccd.Shutdown(sctx, s, cfg), s.Close()); err != nil {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
