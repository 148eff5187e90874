package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/bankmail/internal/app"
	"github.com/hyperifyio/bankmail/internal/decode"
	"github.com/hyperifyio/bankmail/internal/extract"
)

// decodemsg decodes one textual message rendering and prints either the HTML
// body or the fields it yields. Useful when a bank changes its template.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		in       string
		fields   string
		trailing string
		htmlOnly bool
	)
	flag.StringVar(&in, "in", "-", "Message file; - reads stdin")
	flag.StringVar(&fields, "fields", "", "Comma-separated field labels (default BANKMAIL_FIELDS)")
	flag.StringVar(&trailing, "trailing-label", "", "skip or fail")
	flag.BoolVar(&htmlOnly, "html", false, "Print the decoded HTML instead of fields")
	flag.Parse()

	cfg := app.Config{TrailingLabel: trailing}
	if s := strings.TrimSpace(fields); s != "" {
		cfg.Fields = strings.Split(s, ",")
	}
	app.ApplyEnvToConfig(&cfg)

	if err := decodeMessage(os.Stdout, in, cfg, htmlOnly); err != nil {
		log.Error().Err(err).Msg("decodemsg")
		os.Exit(1)
	}
}

func decodeMessage(w io.Writer, in string, cfg app.Config, htmlOnly bool) error {
	var raw []byte
	var err error
	if in == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(in)
	}
	if err != nil {
		return err
	}
	body, ok, err := decode.Decode(string(raw))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no payload found", in)
	}
	if htmlOnly {
		_, err = w.Write(body)
		return err
	}
	labels := extract.NewLabelSet(cfg.Fields...)
	if labels.Len() == 0 {
		return app.ErrNoFields
	}
	policy, err := extract.ParseTrailingPolicy(cfg.TrailingLabel)
	if err != nil {
		return err
	}
	got, err := extract.LabelExtractor{Labels: labels, Trailing: policy}.Extract(body)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(got)
}
