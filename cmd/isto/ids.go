package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

func (c maincmd) ids(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ids", flag.ContinueOnError)
	var (
		beginStr = fs.String("begin", "", "range start (default: unconstrained)")
		endStr   = fs.String("end", "", "range end, exclusive (default: unconstrained)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var begin, end time.Time
	if *beginStr != "" {
		begin, err = parseTime(*beginStr)
		if err != nil {
			return errors.Wrap(err, "parsing -begin")
		}
	}
	if *endStr != "" {
		end, err = parseTime(*endStr)
		if err != nil {
			return errors.Wrap(err, "parsing -end")
		}
	}

	ids, err := c.s.IDsSortedByAscendingTimestamp(ctx, begin, end)
	if err != nil {
		return errors.Wrap(err, "listing ids")
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
