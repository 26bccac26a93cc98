package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/linkedin"

	"github.com/charlesng35/regprofile/internal/models"
)

const (
	linkedInUserInfoURL = "https://api.linkedin.com/v2/userinfo"
	linkedInProfileBase = "https://www.linkedin.com/in/"
	gitHubUserURL       = "https://api.github.com/user"
	gitHubProfileBase   = "https://github.com/"

	maxProfileBody = 1 << 20
)

// profileFetcher reads the caller's profile. The client attaches the access token itself.
type profileFetcher func(ctx context.Context, client *http.Client) (Profile, error)

type providerDefault struct {
	endpoint   oauth2.Endpoint
	scopes     []string
	profileURL string
	newFetcher func(profileURL string) profileFetcher
}

var providerDefaults = map[models.SocialProvider]providerDefault{
	models.ProviderLinkedIn: {
		endpoint:   linkedin.Endpoint,
		scopes:     []string{"openid", "profile"},
		profileURL: linkedInUserInfoURL,
		newFetcher: linkedInFetcher,
	},
	models.ProviderGitHub: {
		endpoint:   github.Endpoint,
		scopes:     []string{"read:user"},
		profileURL: gitHubUserURL,
		newFetcher: gitHubFetcher,
	},
}

// LinkedIn's userinfo response does not expose the vanity URL, so the profile
// URL is derived from the member id. It identifies the member but may not
// resolve in a browser.
func linkedInFetcher(endpoint string) profileFetcher {
	return func(ctx context.Context, client *http.Client) (Profile, error) {
		var body struct {
			Sub string `json:"sub"`
			ID  string `json:"id"`
		}
		if err := getJSON(ctx, client, endpoint, &body); err != nil {
			return Profile{}, err
		}

		subject := strings.TrimSpace(body.Sub)
		if subject == "" {
			subject = strings.TrimSpace(body.ID)
		}
		if subject == "" {
			return Profile{}, errors.New("linkedin profile missing member id")
		}

		return Profile{
			Subject:    subject,
			ProfileURL: linkedInProfileBase + url.PathEscape(subject),
		}, nil
	}
}

func gitHubFetcher(endpoint string) profileFetcher {
	return func(ctx context.Context, client *http.Client) (Profile, error) {
		var body struct {
			ID      int64  `json:"id"`
			Login   string `json:"login"`
			HTMLURL string `json:"html_url"`
		}
		if err := getJSON(ctx, client, endpoint, &body); err != nil {
			return Profile{}, err
		}

		if body.ID == 0 {
			return Profile{}, errors.New("github profile missing id")
		}

		profileURL := strings.TrimSpace(body.HTMLURL)
		if profileURL == "" {
			login := strings.TrimSpace(body.Login)
			if login == "" {
				return Profile{}, errors.New("github profile missing html_url and login")
			}
			profileURL = gitHubProfileBase + url.PathEscape(login)
		}

		return Profile{
			Subject:    strconv.FormatInt(body.ID, 10),
			ProfileURL: models.NormalizeProfileURL(profileURL),
		}, nil
	}
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("profile request: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(out); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	return nil
}
