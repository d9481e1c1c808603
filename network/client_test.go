package network_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/candlefeed/candles-feed/network"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestGetRESTDataDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"n":1}`))
	}))
	defer srv.Close()

	c := network.New()
	data, err := c.GetRESTData(context.Background(), srv.URL, map[string]string{"symbol": "BTCUSDT"}, nil, "GET", nil)
	require.NoError(t, err)

	m, ok := data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, m["ok"])
}

func TestGetRESTDataNon2xxReturnsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1,"msg":"too many requests"}`))
	}))
	defer srv.Close()

	c := network.New()
	_, err := c.GetRESTData(context.Background(), srv.URL, nil, nil, "GET", nil)
	require.ErrorIs(t, err, network.ErrTransport)

	var terr *network.TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
}

var upgrader = websocket.Upgrader{}

func TestEstablishWSConnectionSendAndReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Contains(t, string(raw), "subscribe")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"pong":true}`)))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]

	c := network.New()
	assistant, err := c.EstablishWSConnection(context.Background(), wsURL)
	require.NoError(t, err)
	defer assistant.Disconnect()

	require.NoError(t, assistant.Send(context.Background(), map[string]string{"op": "subscribe"}))

	select {
	case msg := <-assistant.Messages():
		require.NoError(t, msg.Err)
		m := msg.Data.(map[string]interface{})
		require.Equal(t, true, m["pong"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ws message")
	}
}

func TestConfigIsTestnetFor(t *testing.T) {
	cfg := network.Hybrid(map[network.EndpointKind]network.Environment{
		network.EndpointOrders: network.Testnet,
	})
	require.False(t, cfg.IsTestnetFor(network.EndpointCandles))
	require.True(t, cfg.IsTestnetFor(network.EndpointOrders))
}

func TestConfigForTestingForcesProduction(t *testing.T) {
	cfg := network.NewConfig(network.Testnet).ForTesting()
	require.False(t, cfg.IsTestnetFor(network.EndpointCandles))
}
