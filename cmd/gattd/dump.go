package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	ble "github.com/halseth/bleno-fork"
	"github.com/halseth/bleno-fork/att"
	"github.com/halseth/bleno-fork/config"
)

func dump(c *cli.Context) error {
	cfg, ss, err := load(c)
	if err != nil {
		return err
	}
	db, err := database(cfg, ss)
	if err != nil {
		return err
	}
	printAttributes(os.Stdout, db.Attributes())
	return nil
}

func database(cfg *config.Config, ss []*ble.Service) (*att.DB, error) {
	appearance, err := cfg.AppearanceValue()
	if err != nil {
		return nil, err
	}
	return att.Build(cfg.Name, appearance, ss), nil
}

var (
	handleColor = color.New(color.FgHiCyan).SprintFunc()
	groupColor  = color.New(color.FgHiGreen).SprintFunc()
	declColor   = color.New(color.FgHiYellow).SprintFunc()
	secureColor = color.New(color.FgHiRed).SprintFunc()
)

func printAttributes(w io.Writer, aa []att.Attribute) {
	for _, a := range aa {
		typ := fmt.Sprintf("%-36s", typeName(a.Type))
		switch {
		case a.Type.Equal(ble.PrimaryServiceUUID), a.Type.Equal(ble.IncludeUUID):
			typ = groupColor(typ)
		case a.Type.Equal(ble.CharacteristicUUID):
			typ = declColor(typ)
		}
		fmt.Fprintf(w, "%s %s", handleColor(fmt.Sprintf("0x%04X", a.Handle)), typ)
		if a.EndHandle != 0 {
			fmt.Fprintf(w, " end 0x%04X", a.EndHandle)
		}
		if a.Property != 0 {
			fmt.Fprintf(w, " [%s]", a.Property)
		}
		if a.Secure != 0 {
			fmt.Fprintf(w, " %s", secureColor("secure:"+a.Secure.String()))
		}
		if a.Value != nil {
			fmt.Fprintf(w, " %s", hex.EncodeToString(a.Value))
		}
		fmt.Fprintln(w)
	}
}

func typeName(u ble.UUID) string {
	if n := ble.Name(u); n != "" {
		return fmt.Sprintf("%s (%s)", u, n)
	}
	return u.String()
}
