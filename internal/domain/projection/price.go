package projection

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for price entries without a currency code
const DefaultCurrency = "EUR"

// PriceRecord is one price entry of a trade item
type PriceRecord struct {
	NetPrice       decimal.NullDecimal
	GrossPrice     decimal.NullDecimal
	Currency       string
	PriceOnRequest bool
}

// MarshalJSON renders amounts as bare JSON numbers and missing amounts as null
func (p PriceRecord) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"net_price":`)
	writeNullDecimal(&b, p.NetPrice)
	b.WriteString(`,"gross_price":`)
	writeNullDecimal(&b, p.GrossPrice)
	b.WriteString(`,"currency":`)
	currency, err := json.Marshal(p.Currency)
	if err != nil {
		return nil, err
	}
	b.Write(currency)
	b.WriteString(`,"price_on_request":`)
	b.WriteString(strconv.FormatBool(p.PriceOnRequest))
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON accepts amounts as numbers or numeric strings
func (p *PriceRecord) UnmarshalJSON(data []byte) error {
	rec, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	*p = priceFromRecord(rec, DefaultCurrency)
	return nil
}

func writeNullDecimal(b *bytes.Buffer, d decimal.NullDecimal) {
	if !d.Valid {
		b.WriteString("null")
		return
	}
	b.WriteString(d.Decimal.String())
}

func nullDecimal(r Record, key string) decimal.NullDecimal {
	s, ok := r.Scalar(key)
	if !ok {
		return decimal.NullDecimal{}
	}
	d, ok := s.Decimal()
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// priceFromRecord builds a PriceRecord from one _trade_item_prices entry
func priceFromRecord(r Record, defaultCurrency string) PriceRecord {
	currency := defaultCurrency
	if c, ok := r.FirstNonEmpty("currency"); ok {
		if code := strings.ToUpper(strings.TrimSpace(c.String())); code != "" {
			currency = code
		}
	}
	onRequest, _ := r.Scalar("price_on_request")
	return PriceRecord{
		NetPrice:       nullDecimal(r, "net_price"),
		GrossPrice:     nullDecimal(r, "gross_price"),
		Currency:       currency,
		PriceOnRequest: onRequest.Bool(),
	}
}
