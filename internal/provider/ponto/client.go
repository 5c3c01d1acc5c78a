// Package ponto adapts a Ponto-style bank transaction feed into raw transactions.
package ponto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"treasury-reconciler/internal/config"
	"treasury-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized = errors.New("ponto rejected credentials")
)

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	pageSize     int
	httpClient   *http.Client
}

func NewClient(cfg config.PontoConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pageSize:     pageSize,
		httpClient:   httpClient,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type transactionPage struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Amount                decimal.Decimal `json:"amount"`
			RemittanceInformation string          `json:"remittanceInformation"`
			ExecutionDate         time.Time       `json:"executionDate"`
			CreatedAt             time.Time       `json:"createdAt"`
			UpdatedAt             time.Time       `json:"updatedAt"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// accessToken returns a valid bearer token, fetching a new one only when the holder has none.
func (c *Client) accessToken(ctx context.Context, tokens *TokenHolder) (string, error) {
	if token, ok := tokens.Get(c.clientID); ok {
		return token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	tokens.Put(c.clientID, tr.AccessToken, time.Duration(tr.ExpiresIn)*time.Second)
	return tr.AccessToken, nil
}

// GetAllTransactionsUntilID walks the feed newest-first, page by page, and
// stops before sinceID. A nil sinceID yields the full history. Pages are
// fetched lazily as the sequence is consumed; the first error ends it.
func (c *Client) GetAllTransactionsUntilID(ctx context.Context, tokens *TokenHolder, accountRef string, sinceID *string) iter.Seq2[models.RawTransaction, error] {
	return func(yield func(models.RawTransaction, error) bool) {
		next := fmt.Sprintf("%s/accounts/%s/transactions?limit=%s",
			c.baseURL, url.PathEscape(accountRef), strconv.Itoa(c.pageSize))

		for next != "" {
			page, err := c.fetchPage(ctx, tokens, next)
			if err != nil {
				yield(models.RawTransaction{}, err)
				return
			}

			for _, d := range page.Data {
				if sinceID != nil && d.ID == *sinceID {
					return
				}

				amount := d.Attributes.Amount.Shift(2).Round(0).IntPart()
				created := d.Attributes.CreatedAt
				if created.IsZero() {
					created = d.Attributes.ExecutionDate
				}
				updated := d.Attributes.UpdatedAt
				if updated.IsZero() {
					updated = created
				}

				tx := models.RawTransaction{
					ID:               d.ID,
					CreatedAt:        created,
					UpdatedAt:        updated,
					AmountMinorUnits: amount,
					Reference:        d.Attributes.RemittanceInformation,
				}
				if !yield(tx, nil) {
					return
				}
			}

			if len(page.Data) == 0 {
				return
			}
			next = page.Links.Next
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, tokens *TokenHolder, pageURL string) (*transactionPage, error) {
	token, err := c.accessToken(ctx, tokens)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		tokens.Invalidate(c.clientID)
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transactions request failed with status %d: %s", resp.StatusCode, body)
	}

	var page transactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode transactions page: %w", err)
	}
	return &page, nil
}
