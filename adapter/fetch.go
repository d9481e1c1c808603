package adapter

import (
	"context"
	"fmt"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/network"
)

// RESTCandleRequest is what a concrete adapter's GetRESTURL+GetRESTParams compose into: enough
// to issue one GET and parse its response.
type RESTCandleRequest struct {
	URL    string
	Params map[string]string
}

// FetchAsync issues req against client, honoring ctx cancellation, and parses the response with
// parse. Shared by every Hybrid/AsyncOnly adapter's FetchRESTCandles, so each concrete adapter
// package only has to supply its own URL/params/parse logic (GetRESTURL/GetRESTParams/
// ParseRESTResponse) rather than reimplement the GET+parse composition.
func FetchAsync(ctx context.Context, client *network.Client, req RESTCandleRequest, parse func(interface{}) ([]candle.Data, error)) ([]candle.Data, error) {
	raw, err := client.GetRESTData(ctx, req.URL, req.Params, nil, "GET", nil)
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

// FetchSync is the genuine synchronous variant: it issues the same request but via a detached
// background context, so callers cannot cancel it mid-flight — the defining trait of "genuinely
// synchronous" in this contract (spec §4.2).
func FetchSync(client *network.Client, req RESTCandleRequest, parse func(interface{}) ([]candle.Data, error)) ([]candle.Data, error) {
	return FetchAsync(context.Background(), client, req, parse)
}

// FetchViaWorker is how a SyncOnly adapter implements its FetchRESTCandles: the genuine
// synchronous call is dispatched onto a worker goroutine, and the caller's ctx is used only to
// stop waiting for it (the spec's "dispatching the sync call on a worker").
func FetchViaWorker(ctx context.Context, fetchSync func() ([]candle.Data, error)) ([]candle.Data, error) {
	type result struct {
		candles []candle.Data
		err     error
	}
	done := make(chan result, 1)
	go func() {
		candles, err := fetchSync()
		done <- result{candles, err}
	}()

	select {
	case r := <-done:
		return r.candles, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", network.ErrTransport, ctx.Err())
	}
}

// RejectSynchronous is what an AsyncOnly adapter's FetchRESTCandlesSynchronous calls: it raises
// ErrCapabilityUnsupported eagerly and is never retried (spec §7/§8 property 7).
func RejectSynchronous(adapterName string) ([]candle.Data, error) {
	return nil, fmt.Errorf("%w: %s is async-only", ErrCapabilityUnsupported, adapterName)
}
