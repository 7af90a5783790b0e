package main

import (
	"context"
	"flag"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto"
)

func (c maincmd) put(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	var (
		id        = fs.String("id", "", "id to store the item under (required)")
		atstr     = fs.String("at", "", "timestamp for the item (default: now)")
		permanent = fs.Bool("permanent", false, "store in the permanent tier instead of rotating")
		tags      = fs.String("tags", "", "comma-separated key=value tags")
		upsert    = fs.Bool("upsert", false, "overwrite an existing item with the same id")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *id == "" {
		return errors.New("must supply -id")
	}

	at := time.Now()
	if *atstr != "" {
		at, err = parseTime(*atstr)
		if err != nil {
			return errors.Wrap(err, "parsing -at")
		}
	}

	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}

	item, err := isto.NewDataItem(*id, data, at, *permanent, parseTags(*tags))
	if err != nil {
		return errors.Wrap(err, "constructing item")
	}

	if err := c.s.SaveData(ctx, []isto.DataItem{item}, *upsert); err != nil {
		return errors.Wrap(err, "saving item")
	}
	log.Printf("saved %s (%d bytes)", *id, len(data))
	return nil
}
