package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/risk"
)

// Config holds alert delivery settings.
type Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	MinLevel        string `yaml:"min_level" mapstructure:"min_level"`
	SlackWebhookURL string `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
	VetRecipients   bool   `yaml:"vet_recipients" mapstructure:"vet_recipients"`
	SMTP            SMTP   `yaml:"smtp" mapstructure:"smtp"`
}

// AccountChecker reports the known breaches an account appears in.
type AccountChecker interface {
	BreachedAccount(ctx context.Context, account string) ([]string, error)
}

// SMTP holds email delivery settings.
type SMTP struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// Notifier sends alerts for high-risk scan reports over the configured
// channels. Delivery failures are logged, never returned to the scan path.
type Notifier struct {
	config     Config
	minLevel   risk.Level
	checker    AccountChecker
	httpClient *http.Client
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger     *zap.Logger
}

// NewNotifier builds a notifier from config. checker may be nil, which
// disables recipient vetting.
func NewNotifier(config Config, checker AccountChecker, logger *zap.Logger) *Notifier {
	minLevel := risk.LevelCritical
	if config.MinLevel != "" {
		minLevel = risk.ParseLevel(config.MinLevel)
	}
	return &Notifier{
		config:     config,
		minLevel:   minLevel,
		checker:    checker,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sendMail:   smtp.SendMail,
		logger:     logger,
	}
}

// Notify dispatches the report to every configured channel if its risk level
// meets the alert threshold.
func (n *Notifier) Notify(ctx context.Context, r *report.Report) {
	if !n.config.Enabled {
		return
	}
	if r.Summary.Level.Rank() < n.minLevel.Rank() {
		return
	}

	if n.config.SlackWebhookURL != "" {
		if err := n.sendSlack(ctx, r); err != nil {
			n.logger.Error("Failed to send Slack alert",
				zap.Error(err),
				zap.String("report_id", r.ID),
			)
		}
	}
	if n.config.SMTP.Host != "" && len(n.config.SMTP.To) > 0 {
		if err := n.sendEmail(ctx, r); err != nil {
			n.logger.Error("Failed to send email alert",
				zap.Error(err),
				zap.String("report_id", r.ID),
			)
		}
	}
}

func (n *Notifier) sendSlack(ctx context.Context, r *report.Report) error {
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf(":rotating_light: *%s risk* detected in `%s` (score %d, %d findings) report `%s`",
			r.Summary.Level, r.Target, r.Summary.Score, len(r.Findings), r.ID),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.SlackWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Slack webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// vetRecipients drops recipients whose address appears in known breaches.
// Lookup failures keep the recipient so a flaky network cannot silence an
// alert.
func (n *Notifier) vetRecipients(ctx context.Context, recipients []string) []string {
	if !n.config.VetRecipients || n.checker == nil {
		return recipients
	}

	kept := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		breaches, err := n.checker.BreachedAccount(ctx, recipient)
		if err != nil {
			n.logger.Warn("Recipient breach lookup failed, keeping recipient",
				zap.String("recipient", recipient),
				zap.Error(err),
			)
			kept = append(kept, recipient)
			continue
		}
		if len(breaches) > 0 {
			n.logger.Warn("Dropping breached alert recipient",
				zap.String("recipient", recipient),
				zap.Strings("breaches", breaches),
			)
			continue
		}
		kept = append(kept, recipient)
	}
	return kept
}

func (n *Notifier) sendEmail(ctx context.Context, r *report.Report) error {
	cfg := n.config.SMTP
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	recipients := n.vetRecipients(ctx, cfg.To)
	if len(recipients) == 0 {
		return fmt.Errorf("no deliverable recipients after breach vetting")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&body, "Subject: [DataGuardian] %s risk detected in %s\r\n", r.Summary.Level, r.Target)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "Scan %s of %s finished at %s.\r\n\r\n", r.ID, r.Target, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&body, "Risk score: %d (%s)\r\n", r.Summary.Score, r.Summary.Level)
	fmt.Fprintf(&body, "Findings: %d\r\n\r\n", len(r.Findings))
	for detType, count := range r.Summary.CountsByType {
		fmt.Fprintf(&body, "  %s: %d\r\n", detType, count)
	}

	return n.sendMail(addr, auth, cfg.From, recipients, []byte(body.String()))
}
