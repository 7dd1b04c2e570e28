package newsletter

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"ngo-inquiry-tracker/internal/auth"
	"ngo-inquiry-tracker/internal/mail"
	"ngo-inquiry-tracker/internal/models"
	"ngo-inquiry-tracker/internal/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	confirmLink     = regexp.MustCompile(`/newsletter/confirm\?token=([A-Za-z0-9._-]+)`)
	unsubscribeLink = regexp.MustCompile(`/newsletter/unsubscribe\?token=([A-Za-z0-9._-]+)`)
)

type failingSender struct{}

func (failingSender) Send(context.Context, mail.Message) error { return errors.New("smtp down") }

func newTestService(t *testing.T) (*Service, *mail.LogSender) {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	templates, err := mail.LoadTemplates()
	require.NoError(t, err)

	sender := mail.NewLogSender(logger)
	svc := NewService(db, sender, templates, Options{
		SiteName:   "NGO-Anfragen",
		BaseURL:    "https://example.org/",
		ConfirmTTL: 48 * time.Hour,
		Logger:     logger,
	})
	return svc, sender
}

func tokenFrom(t *testing.T, re *regexp.Regexp, html string) string {
	t.Helper()
	m := re.FindStringSubmatch(html)
	require.Len(t, m, 2, "no link in %q", html)
	return m[1]
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Jane.Doe@Example.ORG ")
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.org", email)

	email, err = NormalizeEmail(`"x y"@b.de`)
	require.NoError(t, err)
	require.Equal(t, `"x y"@b.de`, email)

	for _, bad := range []string{"", "no-at-sign", "a@localhost", "Jane <jane@example.org>", "a@@example.org", "a@b"} {
		_, err := NormalizeEmail(bad)
		require.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}

func TestSubscribe_ConfirmFlow(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "Reader@Example.org")
	require.NoError(t, err)
	require.Equal(t, "reader@example.org", sub.Email)
	require.Equal(t, models.StatusPending, sub.Status)
	require.NotEmpty(t, sub.ID)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "reader@example.org", sent[0].To)
	require.Contains(t, sent[0].HTML, "https://example.org/newsletter/confirm?token=")
	require.Contains(t, sent[0].HTML, "48 Stunden")

	confirmed, err := svc.Confirm(ctx, tokenFrom(t, confirmLink, sent[0].HTML))
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Len(t, sender.Sent(), 2, "welcome mail")

	again, err := svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)
	require.Equal(t, confirmed.ID, again.ID)
	require.Len(t, sender.Sent(), 2, "confirmed subscribers get no new mail")
}

func TestSubscribe_PendingResends(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)
	second, err := svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, sender.Sent(), 2)
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	svc, sender := newTestService(t)
	_, err := svc.Subscribe(context.Background(), "not an address")
	require.ErrorIs(t, err, ErrInvalidEmail)
	require.Empty(t, sender.Sent())
}

func TestSubscribe_SendFailure(t *testing.T) {
	svc, _ := newTestService(t)
	svc.sender = failingSender{}
	_, err := svc.Subscribe(context.Background(), "reader@example.org")
	require.Error(t, err)
}

func TestConfirm_RejectsBadTokens(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, "")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Confirm(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)
	unsubscribeToken := tokenFrom(t, unsubscribeLink, sender.Sent()[0].HTML)
	_, err = svc.Confirm(ctx, unsubscribeToken)
	require.ErrorIs(t, err, ErrInvalidToken, "unsubscribe token must not confirm")

	orphan, err := auth.GenerateToken("does-not-exist", auth.PurposeConfirm, time.Hour)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, orphan)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)
	token := tokenFrom(t, unsubscribeLink, sender.Sent()[0].HTML)

	sub, err := svc.Unsubscribe(ctx, token)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnsubscribed, sub.Status)
	require.NotNil(t, sub.UnsubscribedAt)

	sub, err = svc.Unsubscribe(ctx, token)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnsubscribed, sub.Status)

	resub, err := svc.Subscribe(ctx, "reader@example.org")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, resub.Status)
	require.Nil(t, resub.UnsubscribedAt)
}

func TestList_FiltersByStatus(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "one@example.org")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "two@example.org")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, tokenFrom(t, confirmLink, sender.Sent()[1].HTML))
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	confirmed, err := svc.List(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.Equal(t, "two@example.org", confirmed[0].Email)

	_, err = svc.List(ctx, "bogus")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
