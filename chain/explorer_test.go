package chain_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gyber/go-custody/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const balancesBody = `{
  "data": {
    "address": "0xabc",
    "chain_name": "eth-mainnet",
    "chain_id": 1,
    "quote_currency": "USD",
    "items": [
      {"contract_display_name": "Ether", "contract_address": "0xeee", "logo_url": "https://logo", "balance": "1000000000000000000", "quote": 2500.5, "pretty_quote": "$2,500.50"},
      {"contract_display_name": "Dust", "balance": null, "quote": null}
    ]
  },
  "error": false
}`

const transactionsBody = `{
  "data": {
    "address": "0xabc",
    "chain_name": "eth-mainnet",
    "chain_id": 1,
    "items": [
      {"tx_hash": "0x01", "successful": true, "block_height": 19000000, "from_address": "0xabc", "to_address": "0xdef", "value": "42", "pretty_value_quote": "$0.00"}
    ]
  },
  "error": false
}`

func TestExplorer_Balances(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/eth-mainnet/address/0xabc/balances_v2/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(balancesBody))
	}))
	defer srv.Close()

	explorer := chain.NewExplorer(srv.URL, "secret")

	sheet, err := explorer.Balances(context.Background(), "eth-mainnet", "0xabc")
	require.NoError(t, err)

	assert.Equal(t, "USD", sheet.QuoteCurrency)
	assert.Equal(t, int64(1), sheet.ChainID)
	require.Len(t, sheet.Items, 2)
	assert.Equal(t, "1000000000000000000", sheet.Items[0].Balance)
	assert.Equal(t, 2500.5, sheet.Items[0].Quote)
	assert.Equal(t, "0", sheet.Items[1].Balance)
	assert.Zero(t, sheet.Items[1].Quote)

	_, err = explorer.Balances(context.Background(), "eth-mainnet", "0xABC")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second lookup is served from cache")
}

func TestExplorer_Transactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/eth-mainnet/address/0xabc/transactions_v3/", r.URL.Path)
		_, _ = w.Write([]byte(transactionsBody))
	}))
	defer srv.Close()

	history, err := chain.NewExplorer(srv.URL, "").WithCacheTTL(0).
		Transactions(context.Background(), "eth-mainnet", "0xabc")
	require.NoError(t, err)

	require.Len(t, history.Items, 1)
	item := history.Items[0]
	assert.Equal(t, "0x01", item.TxHash)
	assert.True(t, item.Successful)
	assert.Equal(t, int64(19000000), item.BlockHeight)
	assert.Equal(t, "42", item.Value)
}

func TestExplorer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		network string
	}{
		{name: "bad status", status: http.StatusInternalServerError, body: `{}`, network: "eth-mainnet"},
		{name: "api error", status: http.StatusOK, body: `{"error": true, "error_message": "chain not supported"}`, network: "eth-mainnet"},
		{name: "bad json", status: http.StatusOK, body: `{`, network: "eth-mainnet"},
		{name: "missing network", status: http.StatusOK, body: balancesBody, network: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			explorer := chain.NewExplorer(srv.URL, "").
				WithHTTPClient(&http.Client{Timeout: time.Second})

			_, err := explorer.Balances(context.Background(), tt.network, "0xabc")
			assert.Error(t, err)
		})
	}
}
