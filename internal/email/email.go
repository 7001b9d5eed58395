// Package email formats cleaning digests and sends them over SMTP.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/schedule"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// Sender delivers a plain-text message.
type Sender interface {
	Send(to []string, subject, body string) error
}

// SMTPSender sends through the configured SMTP server.
type SMTPSender struct {
	Config SMTPConfig
}

// Send implements Sender.
func (s SMTPSender) Send(to []string, subject, body string) error {
	return Send(s.Config, to, subject, body)
}

// dayPlan is what happens across all apartments on one day.
type dayPlan struct {
	day       time.Time
	checkouts []string
	cleanings []string
	checkins  []string
}

func (p dayPlan) empty() bool {
	return len(p.checkouts) == 0 && len(p.cleanings) == 0 && len(p.checkins) == 0
}

// Subject returns the digest subject line for s.
func Subject(s schedule.Schedule) string {
	if s.Start == nil || s.End == nil {
		return "Cleaning schedule"
	}
	return fmt.Sprintf("Cleaning schedule %s to %s", dates.Format(*s.Start), dates.Format(*s.End))
}

// FormatDigest builds a plain-text email body listing, per day, the
// apartments that check out, need cleaning or check in. Days with none of
// these are left out.
func FormatDigest(s schedule.Schedule, baseURL string) string {
	var plans []dayPlan
	for _, day := range s.Days() {
		p := dayPlan{day: day}
		for _, a := range s.Apartments {
			name := apartmentName(a)
			for _, st := range a.Statuses(day) {
				switch st {
				case apartment.CheckOut:
					p.checkouts = append(p.checkouts, name)
				case apartment.Cleaning:
					p.cleanings = append(p.cleanings, name)
				case apartment.CheckIn:
					p.checkins = append(p.checkins, name)
				}
			}
		}
		if !p.empty() {
			plans = append(plans, p)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hi,\n\n")

	if len(plans) == 0 {
		fmt.Fprintf(&buf, "No cleanings are scheduled")
		if s.Start != nil && s.End != nil {
			fmt.Fprintf(&buf, " between %s and %s", s.Start.Format("Mon Jan 2"), s.End.Format("Mon Jan 2"))
		}
		fmt.Fprintf(&buf, ".\n\n")
	} else {
		fmt.Fprintf(&buf, "Here is the cleaning schedule for %s to %s:\n\n",
			s.Start.Format("Mon Jan 2"), s.End.Format("Mon Jan 2"))
	}

	for _, p := range plans {
		fmt.Fprintf(&buf, "%s\n", p.day.Format("Mon Jan 2"))
		writeLine(&buf, apartment.Cleaning.Label(), p.cleanings)
		writeLine(&buf, apartment.CheckOut.Label(), p.checkouts)
		writeLine(&buf, apartment.CheckIn.Label(), p.checkins)
		fmt.Fprintln(&buf)
	}

	if baseURL != "" {
		fmt.Fprintf(&buf, "Full schedule: %s/\n\n", strings.TrimRight(baseURL, "/"))
	}
	fmt.Fprintf(&buf, "Thanks!\n")

	return buf.String()
}

func writeLine(buf *bytes.Buffer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(buf, "   %s: %s\n", label, strings.Join(names, ", "))
}

func apartmentName(a schedule.ApartmentSchedule) string {
	if a.Description != "" {
		return fmt.Sprintf("apartment %d (%s)", a.Number, a.Description)
	}
	return fmt.Sprintf("apartment %d", a.Number)
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(cfg SMTPConfig, to []string, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := buildMessage(cfg.From, to, subject, body)
	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

func buildMessage(from string, to []string, subject, body string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		from,
		strings.Join(to, ", "),
		subject,
		body,
	)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg string) (err error) {
	tlsCfg := &tls.Config{ServerName: cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
