package candle

import (
	"encoding/json"
	"fmt"
)

// jsonDecimal renders a float64 as a decimal string without trailing zeroes, the same trick the
// teacher library uses (common.JSONFloat64) to avoid encoding/json's scientific notation and lost
// trailing-zero precision for price/volume fields.
type jsonDecimal float64

func (d jsonDecimal) MarshalJSON() ([]byte, error) {
	bs := []byte(fmt.Sprintf("%.12f", float64(d)))
	i := len(bs) - 1
	for ; i >= 0; i-- {
		if bs[i] == '0' {
			continue
		}
		if bs[i] == '.' {
			i--
		}
		break
	}
	quoted := make([]byte, 0, i+3)
	quoted = append(quoted, '"')
	quoted = append(quoted, bs[:i+1]...)
	quoted = append(quoted, '"')
	return quoted, nil
}

// wireData is the canonical JSON shape produced to consumers (spec §6): timestamp in seconds,
// price/volume fields as decimal strings preserving input precision.
type wireData struct {
	Timestamp           int64       `json:"timestamp"`
	Open                jsonDecimal `json:"open"`
	High                jsonDecimal `json:"high"`
	Low                 jsonDecimal `json:"low"`
	Close               jsonDecimal `json:"close"`
	Volume              jsonDecimal `json:"volume"`
	QuoteAssetVolume    jsonDecimal `json:"quote_asset_volume"`
	NTrades             int64       `json:"n_trades"`
	TakerBuyBaseVolume  jsonDecimal `json:"taker_buy_base_volume"`
	TakerBuyQuoteVolume jsonDecimal `json:"taker_buy_quote_volume"`
}

// MarshalJSON implements the canonical candle JSON form described in spec §6.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireData{
		Timestamp:           d.Timestamp,
		Open:                jsonDecimal(d.Open),
		High:                jsonDecimal(d.High),
		Low:                 jsonDecimal(d.Low),
		Close:               jsonDecimal(d.Close),
		Volume:              jsonDecimal(d.Volume),
		QuoteAssetVolume:    jsonDecimal(d.QuoteAssetVolume),
		NTrades:             d.NTrades,
		TakerBuyBaseVolume:  jsonDecimal(d.TakerBuyBaseVolume),
		TakerBuyQuoteVolume: jsonDecimal(d.TakerBuyQuoteVolume),
	})
}

// UnmarshalJSON parses the canonical candle JSON form back into a Data, used by the round-trip
// property test between adapters and mock-server plugins.
func (d *Data) UnmarshalJSON(bs []byte) error {
	var w struct {
		Timestamp           int64   `json:"timestamp"`
		Open                string  `json:"open"`
		High                string  `json:"high"`
		Low                 string  `json:"low"`
		Close               string  `json:"close"`
		Volume              string  `json:"volume"`
		QuoteAssetVolume    string  `json:"quote_asset_volume"`
		NTrades             int64   `json:"n_trades"`
		TakerBuyBaseVolume  string  `json:"taker_buy_base_volume"`
		TakerBuyQuoteVolume string  `json:"taker_buy_quote_volume"`
	}
	if err := json.Unmarshal(bs, &w); err != nil {
		return err
	}
	parse := func(s string) float64 {
		var f float64
		fmt.Sscanf(s, "%f", &f)
		return f
	}
	*d = Data{
		Timestamp:           w.Timestamp,
		Open:                parse(w.Open),
		High:                parse(w.High),
		Low:                 parse(w.Low),
		Close:               parse(w.Close),
		Volume:              parse(w.Volume),
		QuoteAssetVolume:    parse(w.QuoteAssetVolume),
		NTrades:              w.NTrades,
		TakerBuyBaseVolume:  parse(w.TakerBuyBaseVolume),
		TakerBuyQuoteVolume: parse(w.TakerBuyQuoteVolume),
	}
	return nil
}
