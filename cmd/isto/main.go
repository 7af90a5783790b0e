// Command isto is a command-line interface to an isto two-tier blob
// store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"

	"github.com/jreunanen/isto"
)

type maincmd struct {
	s *isto.Store
}

func main() {
	config := flag.String("config", "istoconf.json", "path to config file")
	flag.Parse()

	f, err := os.Open(*config)
	if err != nil {
		log.Fatalf("opening config file %s: %s", *config, err)
	}

	var cfg isto.Configuration
	err = json.NewDecoder(f).Decode(&cfg)
	f.Close()
	if err != nil {
		log.Fatalf("decoding config file %s: %s", *config, err)
	}

	ctx := context.Background()

	s, err := isto.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("opening store: %s", err)
	}
	defer s.Close()

	err = subcmd.Run(ctx, maincmd{s: s}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"get":     {F: c.get},
		"put":     {F: c.put},
		"nearest": {F: c.nearest},
		"range":   {F: c.rangeCmd},
		"promote": {F: c.promote},
		"demote":  {F: c.demote},
		"ids":     {F: c.ids},
	}
}

var timeLayouts = []string{
	time.RFC3339Nano, time.RFC3339,
	"2006-01-02 15:04:05.000000", "2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil { // sic
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("could not parse time %q", s)
}

func parseTags(s string) map[string]string {
	if s == "" {
		return nil
	}
	tags := map[string]string{}
	for _, kv := range splitComma(s) {
		k, v := splitEquals(kv)
		tags[k] = v
	}
	return tags
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func splitEquals(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
