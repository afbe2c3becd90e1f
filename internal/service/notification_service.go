package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/render"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Email is an outgoing notification.
type Email struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPMailer builds a mailer from notification settings.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.EmailFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (m *SMTPMailer) Send(_ context.Context, email Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.PlainBody)
	if email.HTMLBody != "" {
		msg.AddAlternative("text/html", email.HTMLBody)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail. It is used when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: defaultLogger(logger)}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.logger.Debug("email suppressed", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// NewMailer picks SMTP delivery when a host is configured and logging otherwise.
func NewMailer(cfg config.NotificationConfig, logger *zap.Logger) Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// NotificationService turns ticket events into emails for the people involved.
type NotificationService struct {
	dispatcher events.Dispatcher
	tickets    repository.TicketRepository
	users      repository.UserRepository
	mailer     Mailer
	markdown   *render.Markdown
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Mailer     Mailer
	Markdown   *render.Markdown
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := defaultLogger(deps.Logger)
	mailer := deps.Mailer
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	markdown := deps.Markdown
	if markdown == nil {
		markdown = render.NewMarkdown()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		mailer:     mailer,
		markdown:   markdown,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to ticket events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketCommentAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID))
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %d: %w", event.TicketID, err)
	}
	if ticket.Creator == nil {
		return nil
	}
	body := fmt.Sprintf("We received your ticket #%d %q. A support agent will pick it up shortly.", ticket.ID, ticket.Subject)
	return n.send(ctx, ticket.Creator.Email, fmt.Sprintf("[#%d] Ticket received", ticket.ID), body, "")
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("TicketStatusChanged",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("old", string(payload.OldStatus)),
		zap.String("new", string(payload.NewStatus)))

	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %d: %w", event.TicketID, err)
	}
	if ticket.Creator == nil || ticket.Creator.ID == event.Actor.UserID {
		return nil
	}
	body := fmt.Sprintf("Ticket #%d %q moved from %s to %s.", ticket.ID, ticket.Subject, payload.OldStatus, payload.NewStatus)
	return n.send(ctx, ticket.Creator.Email, fmt.Sprintf("[#%d] Status changed to %s", ticket.ID, payload.NewStatus), body, "")
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.NewAssignee == nil {
		return nil
	}
	n.logger.Info("TicketAssigned", zap.Int64("ticket_id", event.TicketID), zap.Int64("assignee_id", *payload.NewAssignee))
	if *payload.NewAssignee == event.Actor.UserID {
		return nil
	}

	assignee, err := n.users.GetByID(ctx, *payload.NewAssignee)
	if err != nil {
		return fmt.Errorf("load assignee %d: %w", *payload.NewAssignee, err)
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %d: %w", event.TicketID, err)
	}
	body := fmt.Sprintf("Ticket #%d %q has been assigned to you.", ticket.ID, ticket.Subject)
	return n.send(ctx, assignee.Email, fmt.Sprintf("[#%d] Assigned to you", ticket.ID), body, "")
}

func (n *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok || payload.IsInternal {
		return nil
	}
	n.logger.Info("TicketCommentAdded", zap.Int64("ticket_id", event.TicketID), zap.Int64("comment_id", payload.CommentID))

	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %d: %w", event.TicketID, err)
	}

	var recipient *domain.User
	switch {
	case ticket.Creator != nil && ticket.Creator.ID != payload.AuthorID:
		recipient = ticket.Creator
	case ticket.Assignee != nil && ticket.Assignee.ID != payload.AuthorID:
		recipient = ticket.Assignee
	default:
		return nil
	}

	subject := fmt.Sprintf("[#%d] New reply on %s", ticket.ID, ticket.Subject)
	htmlBody := fmt.Sprintf("<p>New reply on ticket #%d <strong>%s</strong>:</p>%s",
		ticket.ID, html.EscapeString(ticket.Subject), n.markdown.MustHTML(payload.BodyPreview))
	return n.send(ctx, recipient.Email, subject, payload.BodyPreview, htmlBody)
}

func (n *NotificationService) send(ctx context.Context, to, subject, plain, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	return n.mailer.Send(ctx, Email{To: to, Subject: subject, PlainBody: plain, HTMLBody: htmlBody})
}
