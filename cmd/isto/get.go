package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto"
)

func (c maincmd) get(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	id := fs.String("id", "", "id of item to get")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *id == "" {
		return errors.New("must supply -id")
	}

	item, err := c.s.GetDataByID(ctx, *id)
	if err != nil {
		return errors.Wrapf(err, "getting item %s", *id)
	}
	if !item.IsValid() {
		return errors.Errorf("no such item: %s", *id)
	}
	_, err = os.Stdout.Write(item.Data)
	return errors.Wrap(err, "writing item to stdout")
}

func (c maincmd) nearest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nearest", flag.ContinueOnError)
	var (
		atstr = fs.String("at", "", "timestamp to search near (required)")
		op    = fs.String("op", "~", "comparison operator: <, <=, =, >=, >, or ~ for nearest")
		tags  = fs.String("tags", "", "comma-separated key=value tag filters")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *atstr == "" {
		return errors.New("must supply -at")
	}
	at, err := parseTime(*atstr)
	if err != nil {
		return errors.Wrap(err, "parsing -at")
	}

	item, err := c.s.GetDataByTimestamp(ctx, at, isto.Op(*op), parseTags(*tags))
	if err != nil {
		return errors.Wrap(err, "querying by timestamp")
	}
	if !item.IsValid() {
		return errors.New("no matching item")
	}
	fmt.Printf("%s %s\n", item.ID, item.Timestamp.Format("2006-01-02T15:04:05.000000Z"))
	return nil
}
