package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/config"
)

// Sender handles sending ops notifications via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender. Returns nil when SMTP or the ops
// mailbox is unconfigured; callers treat a nil sender as notifications off.
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	if cfg.SMTPHost == "" || cfg.OpsEmail == "" {
		return nil
	}
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendDisbursementNotice notifies the ops mailbox about a completed loan
// disbursement. Amount is the human-readable (rescaled) form.
func (s *Sender) SendDisbursementNotice(userAddress, tokenName, amount string, loanID int64, txID string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.OpsEmail}
	e.Subject = fmt.Sprintf("Loan disbursed: %s %s", amount, tokenName)

	body := fmt.Sprintf(
		"A loan has been disbursed.\n\n"+
			"Loan ID: %d\n"+
			"Borrower: %s\n"+
			"Token: %s\n"+
			"Amount: %s\n"+
			"On-chain tx: %s\n"+
			"Time: %s\n",
		loanID, userAddress, tokenName, amount, txID,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send disbursement notice for loan %d: %v", loanID, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.OpsEmail, e.Subject)
	return nil
}
