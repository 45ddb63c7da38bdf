package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	mdns "github.com/bino7/mdnsdiscover"
)

type printer interface {
	print(resp *mdns.Response) error
}

func newPrinter(format string, w io.Writer) printer {
	if format == formatJSON {
		return &jsonPrinter{enc: json.NewEncoder(w), now: time.Now}
	}
	return &textPrinter{w: w}
}

// textPrinter writes a summary line per response followed by its records.
type textPrinter struct {
	w io.Writer
}

func (p *textPrinter) print(resp *mdns.Response) error {
	if _, err := fmt.Fprintln(p.w, resp); err != nil {
		return err
	}
	for _, rec := range resp.Records() {
		if _, err := fmt.Fprintf(p.w, "\t%s\n", rec); err != nil {
			return err
		}
	}
	return nil
}

// jsonPrinter writes one JSON object per response.
type jsonPrinter struct {
	enc *json.Encoder
	now func() time.Time
}

type jsonRecord struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Class      string `json:"class"`
	CacheFlush bool   `json:"cache_flush,omitempty"`
	TTL        uint32 `json:"ttl"`
	Data       string `json:"data"`
}

type jsonResponse struct {
	Time        time.Time    `json:"time"`
	Source      string       `json:"source,omitempty"`
	IfIndex     int          `json:"if_index,omitempty"`
	Answers     []jsonRecord `json:"answers"`
	Authorities []jsonRecord `json:"authorities,omitempty"`
	Additionals []jsonRecord `json:"additionals,omitempty"`
}

func (p *jsonPrinter) print(resp *mdns.Response) error {
	out := jsonResponse{
		Time:        p.now().UTC(),
		IfIndex:     resp.IfIndex,
		Answers:     toJSONRecords(resp.Answers),
		Authorities: toJSONRecords(resp.Authorities),
		Additionals: toJSONRecords(resp.Additionals),
	}
	if resp.Source != nil {
		out.Source = resp.Source.String()
	}
	if out.Answers == nil {
		out.Answers = []jsonRecord{}
	}
	return p.enc.Encode(out)
}

func toJSONRecords(recs []mdns.Record) []jsonRecord {
	if len(recs) == 0 {
		return nil
	}
	out := make([]jsonRecord, 0, len(recs))
	for _, rec := range recs {
		data := ""
		if rec.Data != nil {
			data = rec.Data.String()
		}
		out = append(out, jsonRecord{
			Name:       rec.Name,
			Type:       strings.TrimPrefix(rec.Type().String(), "Type"),
			Class:      strings.TrimPrefix(rec.Class.String(), "Class"),
			CacheFlush: rec.CacheFlush,
			TTL:        rec.TTL,
			Data:       data,
		})
	}
	return out
}
