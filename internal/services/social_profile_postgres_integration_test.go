//go:build integration

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/regprofile/internal/models"
	"github.com/charlesng35/regprofile/internal/testutil/containers"
)

func TestTryLinkPostgresUniqueIndexDecidesRace(t *testing.T) {
	db := containers.StartPostgres(t)
	svc, _ := newSocialService(t, db)
	ctx := context.Background()

	const n = 12
	users := make([]*models.User, n)
	for i := range users {
		users[i] = createTestUser(t, db, fmt.Sprintf("pg-racer%d@example.com", i))
	}

	var linked, conflicts atomic.Int32
	var g errgroup.Group
	for _, user := range users {
		g.Go(func() error {
			_, err := svc.TryLink(ctx, LinkInput{UserID: user.ID, Provider: "linkedin", ProfileURL: "https://www.linkedin.com/in/contested"})
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
}
