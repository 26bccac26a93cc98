package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
)

const profileX = "https://www.linkedin.com/in/profile-x"

func newSocialService(t *testing.T, db *gorm.DB, opts ...SocialProfileOption) (*SocialProfileService, *VerificationLedger) {
	t.Helper()

	ledger, err := NewVerificationLedger(db)
	require.NoError(t, err)
	svc, err := NewSocialProfileService(db, ledger, opts...)
	require.NoError(t, err)
	return svc, ledger
}

func countEvents(events []models.SocialVerificationEvent, action models.VerificationAction, outcome string) int {
	n := 0
	for _, e := range events {
		if e.Action == action && e.Outcome == outcome {
			n++
		}
	}
	return n
}

func TestSocialLinkStatusAndDisconnectScenarios(t *testing.T) {
	db := openServiceTestDB(t)
	current := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	svc, ledger := newSocialService(t, db, WithSocialClock(func() time.Time { return current }))
	ctx := context.Background()

	userA := createTestUser(t, db, "a@example.com")
	userB := createTestUser(t, db, "b@example.com")

	// A links X.
	result, err := svc.TryLink(ctx, LinkInput{UserID: userA.ID, Provider: "LinkedIn", ProfileURL: profileX, Subject: "li-a"})
	require.NoError(t, err)
	require.Equal(t, profileX, result.ProfileURL)
	require.True(t, result.VerifiedAt.Equal(current))

	status, err := svc.Status(ctx, userA.ID)
	require.NoError(t, err)
	require.True(t, status.LinkedIn.IsConnected)
	require.Equal(t, profileX, *status.LinkedIn.ProfileURL)
	require.False(t, status.GitHub.IsConnected)

	historyA, err := ledger.HistoryForUser(ctx, userA.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, countEvents(historyA, models.ActionSucceeded, models.OutcomeSucceeded))

	// B tries the same URL.
	_, err = svc.TryLink(ctx, LinkInput{UserID: userB.ID, Provider: "linkedin", ProfileURL: profileX + "/"})
	require.ErrorIs(t, err, ErrProfileConflict)

	historyB, err := ledger.HistoryForUser(ctx, userB.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, countEvents(historyB, models.ActionFailed, models.OutcomeConflict))
	require.Zero(t, countEvents(historyB, models.ActionSucceeded, models.OutcomeSucceeded))

	storedA := reloadUser(t, db, userA.ID)
	require.True(t, storedA.LinkedInVerified)
	require.Equal(t, profileX, *storedA.LinkedInProfileURL)
	require.Equal(t, "li-a", *storedA.LinkedInSubject)
	storedB := reloadUser(t, db, userB.ID)
	require.False(t, storedB.LinkedInVerified)
	require.Nil(t, storedB.LinkedInProfileURL)

	// A disconnects.
	status, err = svc.Disconnect(ctx, userA.ID, "linkedin")
	require.NoError(t, err)
	require.False(t, status.LinkedIn.IsConnected)
	require.Nil(t, status.LinkedIn.ProfileURL)
	require.Nil(t, status.LinkedIn.VerifiedAt)

	storedA = reloadUser(t, db, userA.ID)
	require.Nil(t, storedA.LinkedInProfileURL)
	require.Nil(t, storedA.LinkedInSubject)
	require.Nil(t, storedA.LinkedInVerifiedAt)

	historyA, err = ledger.HistoryForUser(ctx, userA.ID, 0)
	require.NoError(t, err)
	require.Equal(t, models.ActionDisconnect, historyA[0].Action)
	require.Equal(t, models.OutcomeSucceeded, historyA[0].Outcome)
	require.Equal(t, profileX, *historyA[0].ProfileURL)

	// Once released, B can claim it.
	_, err = svc.TryLink(ctx, LinkInput{UserID: userB.ID, Provider: "linkedin", ProfileURL: profileX})
	require.NoError(t, err)
}

func TestTryLinkConcurrentUsersExactlyOneWins(t *testing.T) {
	db := openServiceTestDB(t)
	svc, ledger := newSocialService(t, db)
	ctx := context.Background()

	const n = 8
	users := make([]*models.User, n)
	for i := range users {
		users[i] = createTestUser(t, db, fmt.Sprintf("racer%d@example.com", i))
	}

	var linked, conflicts atomic.Int32
	var g errgroup.Group
	for _, user := range users {
		g.Go(func() error {
			_, err := svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "github", ProfileURL: "https://github.com/contested"})
			switch {
			case err == nil:
				linked.Add(1)
			case errors.Is(err, ErrProfileConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.EqualValues(t, 1, linked.Load())
	require.EqualValues(t, n-1, conflicts.Load())

	var holders int64
	require.NoError(t, db.Model(&models.User{}).
		Where("github_profile_url = ? AND github_verified = ?", "https://github.com/contested", true).
		Count(&holders).Error)
	require.EqualValues(t, 1, holders)

	events, err := ledger.HistoryForProfile(ctx, models.ProviderGitHub, "https://github.com/contested", 0)
	require.NoError(t, err)
	require.Equal(t, n, countEvents(events, models.ActionAttempt, models.OutcomePending))
	require.Equal(t, 1, countEvents(events, models.ActionSucceeded, models.OutcomeSucceeded))
	require.Equal(t, n-1, countEvents(events, models.ActionFailed, models.OutcomeConflict))
}

func TestTryLinkStorageConstraintIsAuthoritative(t *testing.T) {
	db := openServiceTestDB(t)
	svc, ledger := newSocialService(t, db)
	ctx := context.Background()

	// A holder whose verified flag is not yet set passes the pre-check, so the
	// write itself has to hit the unique index.
	url := "https://github.com/octocat"
	holder := &models.User{Email: "holder@example.com", GitHubProfileURL: &url}
	require.NoError(t, db.Create(holder).Error)
	caller := createTestUser(t, db, "caller@example.com")

	_, err := svc.TryLink(ctx, LinkInput{UserID: caller.ID, Provider: "github", ProfileURL: url, Subject: "583231"})
	require.ErrorIs(t, err, ErrProfileConflict)

	stored := reloadUser(t, db, caller.ID)
	require.False(t, stored.GitHubVerified)
	require.Nil(t, stored.GitHubProfileURL)
	require.Nil(t, stored.GitHubSubject)

	history, err := ledger.HistoryForUser(ctx, caller.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.ActionFailed, history[0].Action)
	require.Equal(t, ReasonUniqueViolation, *history[0].FailureReason)
	require.Zero(t, countEvents(history, models.ActionSucceeded, models.OutcomeSucceeded))
}

func TestTryLinkRelinkSameProfileIsIdempotent(t *testing.T) {
	db := openServiceTestDB(t)
	svc, _ := newSocialService(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")

	_, err := svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "github", ProfileURL: "https://github.com/me"})
	require.NoError(t, err)
	_, err = svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "github", ProfileURL: "https://GitHub.com/me/"})
	require.NoError(t, err)

	stored := reloadUser(t, db, user.ID)
	require.True(t, stored.GitHubVerified)
	require.Equal(t, "https://github.com/me", *stored.GitHubProfileURL)
	require.NotNil(t, stored.GitHubVerifiedAt)
}

func TestTryLinkValidation(t *testing.T) {
	db := openServiceTestDB(t)
	svc, ledger := newSocialService(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")

	_, err := svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "myspace", ProfileURL: "https://myspace.com/me"})
	require.ErrorIs(t, err, ErrInvalidProvider)

	_, err = svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "github", ProfileURL: "   "})
	require.ErrorIs(t, err, ErrInvalidProfileURL)

	_, err = svc.TryLink(ctx, LinkInput{UserID: "00000000-0000-0000-0000-000000000000", Provider: "github", ProfileURL: "https://github.com/x"})
	require.ErrorIs(t, err, ErrUserNotFound)

	history, err := ledger.HistoryForUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, countEvents(history, models.ActionFailed, models.OutcomeRejected))

	byReason := map[string]models.SocialVerificationEvent{}
	for _, event := range history {
		require.NotNil(t, event.FailureReason)
		byReason[*event.FailureReason] = event
	}
	require.Equal(t, "myspace", byReason[ReasonInvalidProvider].Provider)
	require.Equal(t, "https://myspace.com/me", *byReason[ReasonInvalidProvider].ProfileURL)
	require.Equal(t, string(models.ProviderGitHub), byReason[ReasonInvalidProfileURL].Provider)

	unknown, err := ledger.HistoryForUser(ctx, "00000000-0000-0000-0000-000000000000", 0)
	require.NoError(t, err)
	require.Empty(t, unknown)
}

func TestTryLinkRejectsNonHTTPProfileURLs(t *testing.T) {
	db := openServiceTestDB(t)
	svc, ledger := newSocialService(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")

	for _, raw := range []string{"javascript:alert(1)", "github.com/me", "ftp://github.com/me"} {
		_, err := svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "github", ProfileURL: raw})
		require.ErrorIs(t, err, ErrInvalidProfileURL, raw)
	}

	stored := reloadUser(t, db, user.ID)
	require.False(t, stored.GitHubVerified)
	require.Nil(t, stored.GitHubProfileURL)

	history, err := ledger.HistoryForUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 3, countEvents(history, models.ActionFailed, models.OutcomeRejected))
	require.Zero(t, countEvents(history, models.ActionSucceeded, models.OutcomeSucceeded))
}

func TestDisconnectValidationAndUnlinked(t *testing.T) {
	db := openServiceTestDB(t)
	svc, ledger := newSocialService(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")

	_, err := svc.Disconnect(ctx, user.ID, "twitter")
	require.ErrorIs(t, err, ErrInvalidProvider)

	rejected, err := ledger.HistoryForUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	require.Equal(t, models.ActionFailed, rejected[0].Action)
	require.Equal(t, models.OutcomeRejected, rejected[0].Outcome)
	require.Equal(t, "twitter", rejected[0].Provider)
	require.Equal(t, ReasonInvalidProvider, *rejected[0].FailureReason)

	_, err = svc.Disconnect(ctx, "00000000-0000-0000-0000-000000000000", "github")
	require.ErrorIs(t, err, ErrUserNotFound)

	status, err := svc.Disconnect(ctx, user.ID, "github")
	require.NoError(t, err)
	require.False(t, status.GitHub.IsConnected)

	history, err := ledger.HistoryForUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.ActionDisconnect, history[0].Action)
	require.Nil(t, history[0].ProfileURL)
}

func TestDisconnectLeavesOtherProviderAndUsers(t *testing.T) {
	db := openServiceTestDB(t)
	svc, _ := newSocialService(t, db)
	ctx := context.Background()
	userA := createTestUser(t, db, "a@example.com")
	userB := createTestUser(t, db, "b@example.com")

	_, err := svc.TryLink(ctx, LinkInput{UserID: userA.ID, Provider: "github", ProfileURL: "https://github.com/a"})
	require.NoError(t, err)
	_, err = svc.TryLink(ctx, LinkInput{UserID: userA.ID, Provider: "linkedin", ProfileURL: "https://www.linkedin.com/in/a"})
	require.NoError(t, err)
	_, err = svc.TryLink(ctx, LinkInput{UserID: userB.ID, Provider: "github", ProfileURL: "https://github.com/b"})
	require.NoError(t, err)

	status, err := svc.Disconnect(ctx, userA.ID, "github")
	require.NoError(t, err)
	require.False(t, status.GitHub.IsConnected)
	require.True(t, status.LinkedIn.IsConnected)

	statusB, err := svc.Status(ctx, userB.ID)
	require.NoError(t, err)
	require.True(t, statusB.GitHub.IsConnected)
}

func TestCompleteOAuthLinksExchangedProfile(t *testing.T) {
	db := openServiceTestDB(t)
	exchanger := &stubExchanger{profile: oauth.Profile{Subject: "583231", ProfileURL: "https://github.com/octocat"}}
	svc, _ := newSocialService(t, db, WithExchanger(exchanger))
	user := createTestUser(t, db, "a@example.com")

	result, err := svc.CompleteOAuth(context.Background(), user.ID, "GitHub", "code-1", "https://api.example.com/oauth/github/callback")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/octocat", result.ProfileURL)
	require.Equal(t, models.ProviderGitHub, exchanger.gotProvider)
	require.Equal(t, "code-1", exchanger.gotCode)

	stored := reloadUser(t, db, user.ID)
	require.Equal(t, "583231", *stored.GitHubSubject)
}

func TestCompleteOAuthRecordsExchangeFailures(t *testing.T) {
	cases := map[string]struct {
		err    error
		reason string
	}{
		"token":   {err: fmt.Errorf("%w: invalid_grant", oauth.ErrTokenExchangeFailed), reason: ReasonTokenExchangeFailed},
		"profile": {err: fmt.Errorf("%w: status 500", oauth.ErrProfileFetchFailed), reason: ReasonProfileFetchFailed},
		"disabled": {err: fmt.Errorf("%w: linkedin", oauth.ErrProviderDisabled), reason: ReasonProviderDisabled},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := openServiceTestDB(t)
			svc, ledger := newSocialService(t, db, WithExchanger(&stubExchanger{err: tc.err}))
			user := createTestUser(t, db, "a@example.com")

			_, err := svc.CompleteOAuth(context.Background(), user.ID, "linkedin", "code", "https://api.example.com/cb")
			require.ErrorIs(t, err, tc.err)

			history, err := ledger.HistoryForUser(context.Background(), user.ID, 0)
			require.NoError(t, err)
			require.Len(t, history, 1)
			require.Equal(t, models.ActionFailed, history[0].Action)
			require.Equal(t, models.OutcomeError, history[0].Outcome)
			require.Equal(t, tc.reason, *history[0].FailureReason)
		})
	}
}

func TestCompleteOAuthRequiresExchanger(t *testing.T) {
	db := openServiceTestDB(t)
	svc, _ := newSocialService(t, db)
	user := createTestUser(t, db, "a@example.com")

	_, err := svc.CompleteOAuth(context.Background(), user.ID, "github", "code", "https://api.example.com/cb")
	require.Error(t, err)
}

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, isUniqueConstraintError(nil))
	require.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, isUniqueConstraintError(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey)))
	require.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: users.github_profile_url")))
	require.True(t, isUniqueConstraintError(errors.New("Error 1062: Duplicate entry 'x' for key 'idx'")))
	require.False(t, isUniqueConstraintError(errors.New("FOREIGN KEY constraint failed")))
}
