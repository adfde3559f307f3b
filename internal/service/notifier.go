package service

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Notifier dispatches outbound email notifications. Every call is
// fire-and-forget from the caller's point of view: failures are logged by the
// implementation and must never fail the originating operation.
type Notifier interface {
	NotifyWelcome(toEmail, username string) error
	NotifyFriendRequest(toEmail, toUsername, fromUsername, fromEmail string) error
}

// SMTPConfig holds mailer connection settings.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type smtpNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) Notifier {
	return &smtpNotifier{cfg: cfg, logger: logger}
}

func (n *smtpNotifier) NotifyWelcome(toEmail, username string) error {
	subject := "Welcome to PlayChat!"
	body := fmt.Sprintf(
		"Hello %s!\r\n\r\n"+
			"Your PlayChat account is ready. Search for friends by username or email, "+
			"send them a friend request and start chatting.\r\n\r\n"+
			"The PlayChat Team\r\n",
		username,
	)
	return n.send(toEmail, subject, body)
}

func (n *smtpNotifier) NotifyFriendRequest(toEmail, toUsername, fromUsername, fromEmail string) error {
	subject := fmt.Sprintf("New friend request from %s", fromUsername)
	body := fmt.Sprintf(
		"Hello %s!\r\n\r\n"+
			"%s (%s) sent you a friend request on PlayChat. "+
			"Log in to accept or decline it.\r\n\r\n"+
			"The PlayChat Team\r\n",
		toUsername, fromUsername, fromEmail,
	)
	return n.send(toEmail, subject, body)
}

func (n *smtpNotifier) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.cfg.FromName, n.cfg.From, to, subject, body,
	)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		n.logger.Warn("email send failed", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
