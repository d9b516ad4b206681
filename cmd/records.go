package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"davbridge/internal/codec"
	"davbridge/internal/ident"
	"davbridge/internal/models"
)

const (
	kindEvent   = "event"
	kindContact = "contact"
)

func kindFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "kind",
		Usage:    "Record kind: event or contact.",
		Required: true,
		Action: func(_ *cli.Context, v string) error {
			if v != kindEvent && v != kindContact {
				return fmt.Errorf("--kind must be %q or %q", kindEvent, kindContact)
			}
			return nil
		},
	}
}

func fileFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read input from this file instead of stdin."}
}

func readInput(c *cli.Context) ([]byte, error) {
	if path := c.String("file"); path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(c.App.Reader)
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Convert a JSON event or contact into an iCalendar or vCard record.",
		Flags: []cli.Flag{
			kindFlag(),
			fileFlag(),
			&cli.StringFlag{Name: "uid", Usage: "Keep this identifier instead of generating one."},
		},
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			rec, err := encodeRecord(codec.New(ident.UUID{}), c.String("kind"), c.String("uid"), data)
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(rec.Body)
			return err
		},
	}
}

func encodeRecord(cd *codec.Codec, kind, uid string, data []byte) (codec.Record, error) {
	switch kind {
	case kindEvent:
		var e models.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return codec.Record{}, fmt.Errorf("invalid event JSON: %w", err)
		}
		if uid != "" {
			return cd.EncodeEventWithUID(uid, e)
		}
		return cd.EncodeEvent(e)
	case kindContact:
		var ct models.Contact
		if err := json.Unmarshal(data, &ct); err != nil {
			return codec.Record{}, fmt.Errorf("invalid contact JSON: %w", err)
		}
		if uid != "" {
			return cd.EncodeContactWithUID(uid, ct)
		}
		return cd.EncodeContact(ct)
	}
	return codec.Record{}, fmt.Errorf("unknown kind %q", kind)
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Convert iCalendar or vCard records into JSON.",
		Flags: []cli.Flag{kindFlag(), fileFlag()},
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			var out any
			switch c.String("kind") {
			case kindEvent:
				out = nonNil(codec.DecodeEvents(data))
			case kindContact:
				out = nonNil(codec.DecodeContacts(data))
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
