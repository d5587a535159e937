package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds settings for the breach lookup client.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	RangeURL   string        `yaml:"range_url" mapstructure:"range_url"`
	AccountURL string        `yaml:"account_url" mapstructure:"account_url"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

const (
	defaultRangeURL   = "https://api.pwnedpasswords.com/range/"
	defaultAccountURL = "https://haveibeenpwned.com/api/v3/breachedaccount/"
)

// Client checks passwords against the Pwned Passwords corpus using the
// k-anonymity range API. Only the first five hex characters of the SHA-1
// digest ever leave the process.
type Client struct {
	httpClient *http.Client
	rangeURL   string
	accountURL string
	userAgent  string
	logger     *zap.Logger
}

// NewClient builds a breach lookup client from config.
func NewClient(config Config, logger *zap.Logger) *Client {
	rangeURL := config.RangeURL
	if rangeURL == "" {
		rangeURL = defaultRangeURL
	}
	accountURL := config.AccountURL
	if accountURL == "" {
		accountURL = defaultAccountURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		rangeURL:   rangeURL,
		accountURL: accountURL,
		userAgent:  config.UserAgent,
		logger:     logger,
	}
}

// PwnedCount returns how many times the password appears in known breaches.
// Zero means the password was not found.
func (c *Client) PwnedCount(ctx context.Context, password string) (int, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rangeURL+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build range request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("range request returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashPart, countPart, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(hashPart, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countPart))
		if err != nil {
			return 0, fmt.Errorf("malformed count in range response: %w", err)
		}
		return count, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read range response: %w", err)
	}
	return 0, nil
}

// BreachedAccount returns the names of known breaches the account appears in.
// An account with no breaches yields an empty slice; only transport and
// server failures return an error.
func (c *Client) BreachedAccount(ctx context.Context, account string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.accountURL+url.PathEscape(account), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build account request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account request failed: %w", err)
	}
	defer resp.Body.Close()

	// Not found means the account has no recorded breaches.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account request returned status %d", resp.StatusCode)
	}

	var entries []struct {
		Name string `json:"Name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("malformed account response: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names, nil
}

// CheckValues runs PwnedCount over candidate password values and returns the
// ones found in breaches. Lookup failures are logged and skipped so a flaky
// network cannot fail a scan.
func (c *Client) CheckValues(ctx context.Context, values []string) map[string]int {
	found := make(map[string]int)
	for _, value := range values {
		count, err := c.PwnedCount(ctx, value)
		if err != nil {
			c.logger.Warn("Breach lookup failed", zap.Error(err))
			continue
		}
		if count > 0 {
			found[value] = count
		}
	}
	return found
}
