package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/integration/telegram"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var leadTemplate = template.Must(template.New("lead").Parse(
	`<h2>Новая заявка: {{.Name}}</h2>
<p>Телефон: {{.Phone}}</p>
<pre style="font-family:inherit;white-space:pre-wrap">{{.Card}}</pre>
`))

func NewLeadEmailSender(host string, port int, user, password, from, to string) *LeadEmailSender {
	if from == "" {
		from = user
	}
	return &LeadEmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       to,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// Send mails an HTML copy of the lead card to the operator inbox.
func (s *LeadEmailSender) Send(ctx context.Context, n usecase.LeadNotification) bool {
	if err := s.SendLead(n); err != nil {
		zap.L().Error("mail: send lead failed", zap.String("to", s.To), zap.Error(err))
		return false
	}
	zap.L().Info("mail: lead sent", zap.String("to", s.To))
	return true
}

func (s *LeadEmailSender) SendLead(n usecase.LeadNotification) error {
	subject, body, err := RenderLead(n)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrap(err, "mail: smtp send")
	}
	return nil
}

// RenderLead builds the subject and escaped HTML body for a lead email.
func RenderLead(n usecase.LeadNotification) (subject, body string, err error) {
	data := LeadEmailData{
		Name:  entity.StringField(n.Lead, "name"),
		Phone: telegram.FormatPhone(entity.StringField(n.Lead, "phone")),
		Card:  telegram.FormatLeadMessage(n),
	}

	var buf bytes.Buffer
	if err := leadTemplate.Execute(&buf, data); err != nil {
		return "", "", eris.Wrap(err, "mail: render lead template")
	}
	return fmt.Sprintf("Новый лид из квиза: %s", data.Name), buf.String(), nil
}
