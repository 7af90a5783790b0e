package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/jreunanen/isto"
)

func (c maincmd) rangeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("range", flag.ContinueOnError)
	var (
		startStr = fs.String("start", "", "range start (default: zero time)")
		endStr   = fs.String("end", "", "range end (default: now)")
		tags     = fs.String("tags", "", "comma-separated key=value tag filters")
		max      = fs.Int("max", 100, "maximum number of items to return")
		desc     = fs.Bool("desc", false, "return newest first instead of oldest first")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var start time.Time
	if *startStr != "" {
		start, err = parseTime(*startStr)
		if err != nil {
			return errors.Wrap(err, "parsing -start")
		}
	}
	end := time.Now()
	if *endStr != "" {
		end, err = parseTime(*endStr)
		if err != nil {
			return errors.Wrap(err, "parsing -end")
		}
	}

	order := isto.Asc
	if *desc {
		order = isto.Desc
	}

	items, err := c.s.GetDataItems(ctx, start, end, parseTags(*tags), *max, order)
	if err != nil {
		return errors.Wrap(err, "ranging items")
	}
	for _, item := range items {
		fmt.Printf("%s %s %d\n", item.ID, item.Timestamp.Format("2006-01-02T15:04:05.000000Z"), len(item.Data))
	}
	return nil
}
