// Command ccdtest takes a single frame with an autoguider camera and
// optionally saves it as FITS
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/LivTel/autoguider-sub002/backends"
	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/config"
	"github.com/LivTel/autoguider-sub002/fli/usb"
	"github.com/LivTel/autoguider-sub002/imgrec"
	"github.com/LivTel/autoguider-sub002/temperature"
	"github.com/LivTel/autoguider-sub002/util"

	"github.com/astrogo/fitsio"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/theckman/yacspin"
)

type options struct {
	configFile string
	bias       bool
	dark       int
	expose     int
	fitsFile   string
	logLevel   string
	temp       string
	window     []int
	xsize      int
	ysize      int
	xbin       int
	ybin       int
	list       bool
	help       bool
}

func parse(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("ccdtest", flag.ContinueOnError)
	fs.StringVar(&o.configFile, "config_filename", "agccd-http.yml", "configuration file")
	fs.BoolVar(&o.bias, "bias", false, "take a bias frame")
	fs.IntVar(&o.dark, "dark", -1, "take a dark of this many milliseconds")
	fs.IntVar(&o.expose, "expose", -1, "take an exposure of this many milliseconds")
	fs.StringVarP(&o.fitsFile, "fits_filename", "f", "", "save the frame to this FITS file")
	fs.StringVar(&o.logLevel, "log_level", "", "log categories, e.g. all or setup,exposure")
	fs.StringVar(&o.temp, "temperature", "", "target temperature, e.g. -40 or 233K; waits for it")
	fs.IntSliceVar(&o.window, "window", nil, "window x_start,y_start,x_end,y_end")
	fs.IntVar(&o.xsize, "xsize", 0, "columns to read, default from the configuration")
	fs.IntVar(&o.ysize, "ysize", 0, "rows to read, default from the configuration")
	fs.IntVar(&o.xbin, "xbin", 1, "horizontal binning")
	fs.IntVar(&o.ybin, "ybin", 1, "vertical binning")
	fs.BoolVar(&o.list, "list", false, "list the FLI cameras on the USB bus and exit")
	fs.BoolVarP(&o.help, "help", "h", false, "print this help")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.help {
		fs.PrintDefaults()
		return o, nil
	}
	n := 0
	for _, b := range []bool{o.bias, o.dark >= 0, o.expose >= 0} {
		if b {
			n++
		}
	}
	if n > 1 {
		return o, errors.New("only one of --bias, --dark and --expose may be given")
	}
	if o.window != nil && len(o.window) != 4 {
		return o, errors.Errorf("--window needs 4 values, got %s", util.IntSliceToCSV(o.window))
	}
	return o, nil
}

func main() {
	o, err := parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if o.help {
		return
	}
	if o.list {
		devs, err := usb.List()
		if err != nil {
			log.Fatal(err)
		}
		for _, d := range devs {
			fmt.Println(d)
		}
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err = run(ctx, o); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, o options) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	mask := ccd.LogAll
	if o.logLevel != "" {
		if mask, err = ccd.ParseLevel(o.logLevel); err != nil {
			return err
		}
	}
	lg := ccd.NewLogger(ccd.LogrusHandler(log.StandardLogger()), ccd.BitwiseFilter(mask))
	s := ccd.NewSession(lg, nil)
	d, err := backends.Open(cfg, lg)
	if err != nil {
		return err
	}
	if err = s.Register(d); err != nil {
		return err
	}
	if o.temp != "" {
		t, err := temperature.Parse(o.temp)
		if err != nil {
			return err
		}
		if err = cfg.Set(ccd.KeyTargetTemperature, float64(t)); err != nil {
			return err
		}
	}
	if err = ccd.Startup(ctx, s, cfg); err != nil {
		return err
	}
	defer func() {
		if err := ccd.Shutdown(context.Background(), s, cfg); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}()
	if o.temp != "" {
		if err = waitForTemperature(ctx, s); err != nil {
			return err
		}
	}

	if o.xsize <= 0 {
		if o.xsize, err = cfg.Int("ccd.field.ncols"); err != nil {
			return err
		}
	}
	if o.ysize <= 0 {
		if o.ysize, err = cfg.Int("ccd.field.nrows"); err != nil {
			return err
		}
	}
	var win ccd.Window
	if o.window != nil {
		win = ccd.Window{XStart: o.window[0], YStart: o.window[1], XEnd: o.window[2], YEnd: o.window[3]}
	}
	if err = s.SetupDimensions(o.xsize, o.ysize, o.xbin, o.ybin, o.window != nil, win); err != nil {
		return err
	}

	var (
		typ    string
		length time.Duration
		open   bool
	)
	switch {
	case o.expose >= 0:
		typ, length, open = "expose", time.Duration(o.expose)*time.Millisecond, true
	case o.dark >= 0:
		typ, length = "dark", time.Duration(o.dark)*time.Millisecond
	case o.bias:
		typ = "bias"
	default:
		log.Info("no frame requested")
		return nil
	}
	return takeFrame(ctx, s, typ, open, length, o.fitsFile)
}

func waitForTemperature(ctx context.Context, s *ccd.Session) error {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		t, st, err := s.Temperature()
		if err != nil {
			return err
		}
		log.Infof("temperature %v, %s", t, st)
		if st == ccd.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func takeFrame(ctx context.Context, s *ccd.Session, typ string, open bool, length time.Duration, fn string) error {
	buf, err := s.AllocateBuffer()
	if err != nil {
		return err
	}
	cols, _ := s.Columns()
	rows, _ := s.Rows()

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + typ,
		SuffixAutoColon:   true,
		Message:           fmt.Sprintf("%dx%d, %v", cols, rows, length),
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	if err = spinner.Start(); err != nil {
		return err
	}
	if typ == "bias" {
		err = s.Bias(ctx, buf)
	} else {
		err = s.Expose(ctx, open, time.Time{}, length, buf)
	}
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.Stop()

	lo, hi := buf[0], buf[0]
	for _, v := range buf {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	log.WithFields(log.Fields{"min": lo, "max": hi, "crc": fmt.Sprintf("%08x", imgrec.Checksum(buf))}).Info("frame read out")
	if fn == "" {
		return nil
	}
	start, _ := s.ExposureStartTime()
	cards := imgrec.FrameCards(uuid.New(), buf, start)
	cards = append(cards, fitsio.Card{Name: "OBSTYPE", Value: typ, Comment: "frame type"})
	if mm, ok := s.Driver().(interface{ CollectHeaderMetadata() []fitsio.Card }); ok {
		cards = append(cards, mm.CollectHeaderMetadata()...)
	}
	if err = imgrec.Save(fn, buf, cols, rows, cards...); err != nil {
		return errors.Wrapf(err, "save %s", fn)
	}
	log.WithField("file", fn).Info("frame saved")
	return nil
}
