package oauth2

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// googleProfile keeps only the field this application persists.
type googleProfile struct {
	ID string `json:"id"`
}

func NewGoogle(clientID, clientSecret, callbackURL string, onProfile ProfileHandler) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		ProfileURL: googleProfileURL,
		decodeID:   decodeGoogleID,
		onProfile:  onProfile,
	}
}

func decodeGoogleID(data []byte) (string, error) {
	var profile googleProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return "", fmt.Errorf("decode google profile: %w", err)
	}
	return profile.ID, nil
}
