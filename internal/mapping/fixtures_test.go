package mapping

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"
)

type Order struct {
	ID        int64
	Customer  string  `rel:"readonly"`
	Shipping  Address `rel:"embedded=ship_"`
	LineItems []LineItem
	Notes     map[string]Note
	Tags      []Tag `rel:"set,idcolumn=order_ref"`
	Invoice   *Invoice
	Created   time.Time
	Signature []byte
	Audit
	Ignored  string `rel:"-"`
	internal string
}

type LineItem struct {
	SKU       string
	Quantity  int
	Discounts []Discount
}

type Discount struct {
	Code string
}

type Address struct {
	Street string
	City   string
	Geo    Geo `rel:"embedded=geo_"`
}

type Geo struct {
	Lat float64
	Lng float64
}

type Note struct {
	Text string
}

type Tag struct {
	Label string
}

type Invoice struct {
	Number int64 `rel:"id,column=invoice_no"`
	Total  int64
	Lines  []InvoiceLine `rel:"keycolumn=position"`
}

type InvoiceLine struct {
	Amount int64
}

type Audit struct {
	CreatedBy string
	Version   int `rel:"readonly"`
}

type FooTable struct {
	_  struct{} `table:"#{'foo'}"`
	ID int64
}

type TenantOrder struct {
	_  struct{} `schema:"#{tenant}"`
	ID int64
}

type NullTable struct {
	_  struct{} `table:"#{null}"`
	ID int64
}

type PlainTable struct {
	_  struct{} `table:"orders" schema:"archive"`
	ID int64
}

type TenantTable struct {
	_  struct{} `table:"orders_#{tenant}"`
	ID int64
}

type Archive struct {
	_       struct{} `table:"archived_orders"`
	ID      int64
	Entries []Entry
}

type Entry struct {
	Text string
}

type ORDER struct {
	ID int64
}

type BadTag struct {
	Name string `rel:"bogus"`
}

type BadEmbedded struct {
	Names []string `rel:"embedded"`
}

type TwoIDs struct {
	A int64 `rel:"id"`
	B int64 `rel:"id"`
}

// newTestContext returns a quoting context whose log output is captured in buf.
func newTestContext(t *testing.T, mutate func(*Config)) (*Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	if mutate != nil {
		mutate(&cfg)
	}
	return NewContext(cfg), &buf
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
