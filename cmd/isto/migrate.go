package main

import (
	"context"
	"flag"
	"log"

	"github.com/pkg/errors"
)

func (c maincmd) promote(ctx context.Context, args []string) error {
	return c.moveTier(ctx, args, true)
}

func (c maincmd) demote(ctx context.Context, args []string) error {
	return c.moveTier(ctx, args, false)
}

func (c maincmd) moveTier(ctx context.Context, args []string, toPermanent bool) error {
	fs := flag.NewFlagSet("moveTier", flag.ContinueOnError)
	id := fs.String("id", "", "id of item to move")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *id == "" {
		return errors.New("must supply -id")
	}

	var moved bool
	if toPermanent {
		moved, err = c.s.MakePermanent(ctx, *id)
	} else {
		moved, err = c.s.MakeRotating(ctx, *id)
	}
	if err != nil {
		return errors.Wrapf(err, "moving %s", *id)
	}
	log.Printf("moved %s: %v", *id, moved)
	return nil
}
