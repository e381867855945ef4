// Command gattd runs a BLE GATT peripheral described by a configuration
// file, on top of the link and advertising helpers.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	log "github.com/mgutz/logxi/v1"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
	"github.com/halseth/bleno-fork/adv"
	"github.com/halseth/bleno-fork/config"
	"github.com/halseth/bleno-fork/examples/lib"
	"github.com/halseth/bleno-fork/gatt"
	"github.com/halseth/bleno-fork/transport"
)

var logger = log.New("gattd")

func main() {
	app := cli.NewApp()

	app.Name = "gattd"
	app.Usage = "A BLE GATT peripheral"
	app.Version = "0.1.0"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration file (default " + config.DefaultFile + ")",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:    "serve",
			Aliases: []string{"sv"},
			Usage:   "Advertise and serve the configured services",
			Action:  serve,
			Flags: []cli.Flag{
				cli.DurationFlag{Name: "duration, d", Usage: "stop after duration (0 serves until interrupted)"},
				cli.BoolFlag{Name: "demo", Usage: "add the battery and count/echo demo services"},
			},
		},
		{
			Name:    "dump",
			Aliases: []string{"d"},
			Usage:   "Print the attribute table of the configured services",
			Action:  dump,
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "demo", Usage: "add the battery and count/echo demo services"},
			},
		},
		{
			Name:    "adv",
			Aliases: []string{"a"},
			Usage:   "Print the advertising and scan response payloads",
			Action:  advertisement,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gattd: %s\n", err)
		os.Exit(1)
	}
}

func load(c *cli.Context) (*config.Config, []*ble.Service, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, nil, err
	}
	ss, err := cfg.BuildServices()
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid services")
	}
	if c.Bool("demo") {
		ss = append(ss, lib.NewBatteryService(), lib.NewTestService())
	}
	return cfg, ss, nil
}

func payloads(cfg *config.Config, ss []*ble.Service) (adv.Packet, adv.Packet, error) {
	uu, err := cfg.AdvertisedUUIDs()
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Advertising.Services) == 0 {
		for _, s := range ss[len(cfg.Services):] {
			uu = append(uu, s.UUID)
		}
	}
	return adv.NameAndServices(cfg.Name, uu)
}

func serve(c *cli.Context) error {
	cfg, ss, err := load(c)
	if err != nil {
		return err
	}
	appearance, err := cfg.AppearanceValue()
	if err != nil {
		return err
	}
	opts := []gatt.Option{gatt.Appearance(appearance)}

	if cfg.Advertising.Enabled && cfg.Transport.Adv != "" {
		a, s, err := payloads(cfg, ss)
		if err != nil {
			return errors.Wrap(err, "can't build advertisement")
		}
		rwc, err := transport.Exec(cfg.Transport.Adv)
		if err != nil {
			return err
		}
		go io.Copy(ioutil.Discard, rwc)
		advertiser := transport.NewAdvertiser(rwc)
		defer advertiser.Close()
		opts = append(opts, gatt.Advertise(advertiser, a, s))
	}

	rwc, err := openLink(cfg.Transport)
	if err != nil {
		return err
	}
	link := transport.NewLink(rwc)
	defer link.Close()

	srv, err := gatt.NewServer(cfg.Name, opts...)
	if err != nil {
		return errors.Wrap(err, "can't create server")
	}
	if err := srv.SetServices(ss); err != nil {
		return errors.Wrap(err, "can't set services")
	}
	srv.DB().DumpAttributes()

	var ctx context.Context
	var cancel context.CancelFunc
	if d := c.Duration("duration"); d > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()
	ctx = withSigHandler(ctx, cancel)

	logger.Info("serving", "name", cfg.Name, "services", len(ss))
	fmt.Printf("Serving %s...\n", cfg.Name)
	return chkErr(srv.Serve(ctx, link))
}

func openLink(t config.Transport) (io.ReadWriteCloser, error) {
	switch {
	case t.Serial != "":
		return transport.OpenSerial(t.Serial, t.Baud)
	case t.Link != "":
		return transport.Exec(t.Link)
	}
	return nil, errors.New("no transport configured: set transport.link or transport.serial")
}

func advertisement(c *cli.Context) error {
	cfg, ss, err := load(c)
	if err != nil {
		return err
	}
	a, s, err := payloads(cfg, ss)
	if err != nil {
		return errors.Wrap(err, "can't build advertisement")
	}
	fmt.Printf("adv:  %x\nscan: %x\n", []byte(a), []byte(s))
	return nil
}

// withSigHandler cancels ctx on SIGINT or SIGTERM.
func withSigHandler(ctx context.Context, cancel func()) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx
}

func chkErr(err error) error {
	switch errors.Cause(err) {
	case context.DeadlineExceeded:
		// Specified duration passed, which is the expected case.
		return nil
	case context.Canceled:
		fmt.Printf("\n(Canceled)\n")
		return nil
	}
	return err
}
