package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/regprofile/internal/database/testutil"
	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/oauth"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.Take(&user, "id = ?", id).Error)
	return &user
}

type stubExchanger struct {
	profile oauth.Profile
	err     error

	gotProvider models.SocialProvider
	gotCode     string
	gotRedirect string
}

func (s *stubExchanger) Exchange(_ context.Context, provider models.SocialProvider, code, redirectURI string) (oauth.Profile, error) {
	s.gotProvider = provider
	s.gotCode = code
	s.gotRedirect = redirectURI
	return s.profile, s.err
}

func (s *stubExchanger) AuthCodeURL(provider models.SocialProvider, state, redirectURI string) (string, error) {
	return "https://provider.example.com/authorize?state=" + state, nil
}
