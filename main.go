package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/candlefeed/candles-feed/exchanges"
	"github.com/candlefeed/candles-feed/feed"
)

func main() {
	var (
		flagExchange = flag.String("exchange", "binance_spot", "one of binance_spot|okx_spot|bybit_spot|coinbase_spot|kucoin_spot")
		flagPair     = flag.String("pair", "BTC-USDT", "trading pair in BASE-QUOTE form")
		flagInterval = flag.String("interval", "1m", "candlestick interval token, e.g. 1m, 1h, 1d")
		flagMode     = flag.String("mode", "auto", "collection mode: auto|rest|websocket")
		flagLimit    = flag.Int("limit", 10, "how many candles to print before stopping")
	)
	flag.Parse()

	registry := exchanges.NewRegistry()
	a, err := registry.GetAdapterInstance(*flagExchange)
	if err != nil {
		exit(fmt.Sprintf("unknown exchange %q: %v", *flagExchange, err), true)
	}

	f := feed.New(a, *flagPair, *flagInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.Start(ctx, *flagMode); err != nil {
		exit(fmt.Sprintf("error starting feed: %v", err), false)
	}
	defer f.Stop()

	printed := make(map[int64]bool)
	for len(printed) < *flagLimit {
		for _, c := range f.GetCandles() {
			if printed[c.Timestamp] {
				continue
			}
			printed[c.Timestamp] = true
			bs, _ := json.Marshal(c)
			fmt.Println(string(bs))
			if len(printed) >= *flagLimit {
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func exit(s string, showUsage bool) {
	log.Println(s)
	if showUsage {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(0)
}
