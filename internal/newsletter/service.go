package newsletter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ngo-inquiry-tracker/internal/auth"
	"ngo-inquiry-tracker/internal/mail"
	"ngo-inquiry-tracker/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidStatus = errors.New("invalid subscriber status")
	ErrNotFound      = errors.New("subscriber not found")
)

var (
	now      = time.Now
	validate = validator.New()
)

type Options struct {
	SiteName   string
	BaseURL    string
	ConfirmTTL time.Duration
	Logger     *logrus.Logger
}

// Service manages the double opt-in subscriber lifecycle.
type Service struct {
	db        *gorm.DB
	sender    mail.Sender
	templates *mail.Templates
	opts      Options
	log       *logrus.Entry
}

func NewService(db *gorm.DB, sender mail.Sender, templates *mail.Templates, opts Options) *Service {
	if opts.ConfirmTTL <= 0 {
		opts.ConfirmTTL = 48 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Service{
		db:        db,
		sender:    sender,
		templates: templates,
		opts:      opts,
		log:       logger.WithField("component", "newsletter"),
	}
}

// NormalizeEmail validates address and returns its lower-cased bare form.
func NormalizeEmail(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) > 254 {
		return "", ErrInvalidEmail
	}
	if err := validate.Var(address, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(address), nil
}

// Subscribe registers address and sends a confirmation mail. Confirmed
// subscribers are returned unchanged without another mail.
func (s *Service) Subscribe(ctx context.Context, address string) (*models.Subscriber, error) {
	email, err := NormalizeEmail(address)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var sub models.Subscriber
	err = db.Where("email = ?", email).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = models.Subscriber{
			ID:     uuid.NewString(),
			Email:  email,
			Status: models.StatusPending,
		}
		if err := db.Create(&sub).Error; err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up subscriber: %w", err)
	case sub.Status == models.StatusConfirmed:
		return &sub, nil
	default:
		sub.Status = models.StatusPending
		sub.UnsubscribedAt = nil
		if err := db.Save(&sub).Error; err != nil {
			return nil, fmt.Errorf("failed to update subscriber: %w", err)
		}
	}

	if err := s.sendConfirmation(ctx, &sub); err != nil {
		return nil, err
	}
	s.log.WithField("subscriber_id", sub.ID).Info("Confirmation requested")
	return &sub, nil
}

// Confirm marks the subscriber named by a confirm token as confirmed.
func (s *Service) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	sub, err := s.subscriberFromToken(ctx, token, auth.PurposeConfirm)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusConfirmed {
		return sub, nil
	}

	t := now()
	sub.Status = models.StatusConfirmed
	sub.ConfirmedAt = &t
	sub.UnsubscribedAt = nil
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to confirm subscriber: %w", err)
	}

	if err := s.sendWelcome(ctx, sub); err != nil {
		s.log.WithError(err).WithField("subscriber_id", sub.ID).Warn("Welcome mail failed")
	}
	s.log.WithField("subscriber_id", sub.ID).Info("Subscriber confirmed")
	return sub, nil
}

// Unsubscribe marks the subscriber named by an unsubscribe token as
// unsubscribed. Repeating it is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, token string) (*models.Subscriber, error) {
	sub, err := s.subscriberFromToken(ctx, token, auth.PurposeUnsubscribe)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.StatusUnsubscribed {
		return sub, nil
	}

	t := now()
	sub.Status = models.StatusUnsubscribed
	sub.UnsubscribedAt = &t
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	s.log.WithField("subscriber_id", sub.ID).Info("Subscriber unsubscribed")
	return sub, nil
}

// List returns subscribers, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status models.SubscriberStatus) ([]models.Subscriber, error) {
	query := s.db.WithContext(ctx).Order("created_at desc")
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}

	var subs []models.Subscriber
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

func (s *Service) subscriberFromToken(ctx context.Context, token, purpose string) (*models.Subscriber, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := auth.ValidateToken(token, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var sub models.Subscriber
	err = s.db.WithContext(ctx).First(&sub, "id = ?", claims.Subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscriber: %w", err)
	}
	return &sub, nil
}

func (s *Service) sendConfirmation(ctx context.Context, sub *models.Subscriber) error {
	confirmToken, err := auth.GenerateToken(sub.ID, auth.PurposeConfirm, s.opts.ConfirmTTL)
	if err != nil {
		return fmt.Errorf("failed to create confirm token: %w", err)
	}
	unsubscribeURL, err := s.unsubscribeURL(sub)
	if err != nil {
		return err
	}

	html, err := s.templates.Render("confirm", map[string]string{
		"SiteName":       s.opts.SiteName,
		"ValidFor":       formatValidity(s.opts.ConfirmTTL),
		"ConfirmURL":     s.link("/newsletter/confirm", confirmToken),
		"UnsubscribeURL": unsubscribeURL,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, mail.Message{
		To:      sub.Email,
		Subject: s.opts.SiteName + ": Bitte bestätigen Sie Ihre Anmeldung",
		HTML:    html,
	})
}

func (s *Service) sendWelcome(ctx context.Context, sub *models.Subscriber) error {
	unsubscribeURL, err := s.unsubscribeURL(sub)
	if err != nil {
		return err
	}
	html, err := s.templates.Render("welcome", map[string]string{
		"SiteName":       s.opts.SiteName,
		"SiteURL":        s.opts.BaseURL + "/",
		"UnsubscribeURL": unsubscribeURL,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, mail.Message{
		To:      sub.Email,
		Subject: s.opts.SiteName + ": Anmeldung bestätigt",
		HTML:    html,
	})
}

func (s *Service) unsubscribeURL(sub *models.Subscriber) (string, error) {
	token, err := auth.GenerateToken(sub.ID, auth.PurposeUnsubscribe, 0)
	if err != nil {
		return "", fmt.Errorf("failed to create unsubscribe token: %w", err)
	}
	return s.link("/newsletter/unsubscribe", token), nil
}

func (s *Service) link(path, token string) string {
	return s.opts.BaseURL + path + "?" + url.Values{"token": {token}}.Encode()
}

func formatValidity(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d Stunden", int(d/time.Hour))
	}
	return fmt.Sprintf("%d Minuten", int(d/time.Minute))
}
