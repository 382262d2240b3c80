package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gyber/go-custody"
	"github.com/patrickmn/go-cache"
)

const (
	defaultExplorerURL     = "https://api.covalenthq.com"
	defaultExplorerTimeout = 10 * time.Second
	defaultExplorerTTL     = 30 * time.Second
)

// Explorer reads balances and transactions from a Covalent compatible API.
// Responses are cached per network and address for a short time.
type Explorer struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
	apiKey  string
}

var _ custody.Explorer = (*Explorer)(nil)

func NewExplorer(baseURL, apiKey string) *Explorer {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultExplorerURL
	}
	return &Explorer{
		client:  &http.Client{Timeout: defaultExplorerTimeout},
		cache:   cache.New(defaultExplorerTTL, 2*defaultExplorerTTL),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// WithHTTPClient replaces the http client, mostly for tests
func (e *Explorer) WithHTTPClient(client *http.Client) *Explorer {
	if client != nil {
		e.client = client
	}
	return e
}

// WithCacheTTL changes how long responses are reused, zero disables caching
func (e *Explorer) WithCacheTTL(ttl time.Duration) *Explorer {
	if ttl <= 0 {
		e.cache = nil
		return e
	}
	e.cache = cache.New(ttl, 2*ttl)
	return e
}

type envelope[T any] struct {
	Data         T      `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type balancesData struct {
	Address       string `json:"address"`
	ChainName     string `json:"chain_name"`
	ChainID       int64  `json:"chain_id"`
	QuoteCurrency string `json:"quote_currency"`
	Items         []struct {
		LogoURL             string   `json:"logo_url"`
		ContractDisplayName string   `json:"contract_display_name"`
		ContractAddress     string   `json:"contract_address"`
		Quote               *float64 `json:"quote"`
		PrettyQuote         string   `json:"pretty_quote"`
		Balance             string   `json:"balance"`
	} `json:"items"`
}

type transactionsData struct {
	Address   string `json:"address"`
	ChainName string `json:"chain_name"`
	ChainID   int64  `json:"chain_id"`
	Items     []struct {
		TxHash           string `json:"tx_hash"`
		Successful       bool   `json:"successful"`
		BlockHeight      int64  `json:"block_height"`
		FromAddress      string `json:"from_address"`
		ToAddress        string `json:"to_address"`
		Value            string `json:"value"`
		PrettyValueQuote string `json:"pretty_value_quote"`
	} `json:"items"`
}

func (e *Explorer) Balances(ctx context.Context, network, address string) (custody.BalanceSheet, error) {
	key := "balances:" + network + ":" + strings.ToLower(address)
	if cached, ok := e.cached(key); ok {
		return cached.(custody.BalanceSheet), nil
	}

	var body envelope[balancesData]
	if err := e.get(ctx, network, address, "balances_v2", &body); err != nil {
		return custody.BalanceSheet{}, err
	}

	sheet := custody.BalanceSheet{
		Address:       body.Data.Address,
		ChainName:     body.Data.ChainName,
		ChainID:       body.Data.ChainID,
		QuoteCurrency: body.Data.QuoteCurrency,
		Items:         make([]custody.BalanceItem, 0, len(body.Data.Items)),
	}
	for _, item := range body.Data.Items {
		out := custody.BalanceItem{
			LogoURL:             item.LogoURL,
			ContractDisplayName: item.ContractDisplayName,
			ContractAddress:     item.ContractAddress,
			PrettyQuote:         item.PrettyQuote,
			Balance:             firstOr(item.Balance, "0"),
		}
		if item.Quote != nil {
			out.Quote = *item.Quote
		}
		sheet.Items = append(sheet.Items, out)
	}

	e.store(key, sheet)
	return sheet, nil
}

func (e *Explorer) Transactions(ctx context.Context, network, address string) (custody.TransactionHistory, error) {
	key := "transactions:" + network + ":" + strings.ToLower(address)
	if cached, ok := e.cached(key); ok {
		return cached.(custody.TransactionHistory), nil
	}

	var body envelope[transactionsData]
	if err := e.get(ctx, network, address, "transactions_v3", &body); err != nil {
		return custody.TransactionHistory{}, err
	}

	history := custody.TransactionHistory{
		Address:   body.Data.Address,
		ChainName: body.Data.ChainName,
		ChainID:   body.Data.ChainID,
		Items:     make([]custody.TransactionItem, 0, len(body.Data.Items)),
	}
	for _, item := range body.Data.Items {
		history.Items = append(history.Items, custody.TransactionItem{
			TxHash:           item.TxHash,
			Successful:       item.Successful,
			BlockHeight:      item.BlockHeight,
			FromAddress:      item.FromAddress,
			ToAddress:        item.ToAddress,
			Value:            firstOr(item.Value, "0"),
			PrettyValueQuote: item.PrettyValueQuote,
		})
	}

	e.store(key, history)
	return history, nil
}

func (e *Explorer) get(ctx context.Context, network, address, resource string, out any) error {
	if network == "" || address == "" {
		return fmt.Errorf("explorer: network and address are required")
	}

	endpoint := fmt.Sprintf("%s/v1/%s/address/%s/%s/",
		e.baseURL, url.PathEscape(network), url.PathEscape(address), resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("explorer: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("explorer: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer: unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("explorer: decode response: %w", err)
	}

	if failed, ok := out.(interface{ failure() (bool, string) }); ok {
		if bad, msg := failed.failure(); bad {
			return fmt.Errorf("explorer: %s", msg)
		}
	}
	return nil
}

func (e *envelope[T]) failure() (bool, string) {
	return e.Error, e.ErrorMessage
}

func (e *Explorer) cached(key string) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

func (e *Explorer) store(key string, value any) {
	if e.cache != nil {
		e.cache.SetDefault(key, value)
	}
}

func firstOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
