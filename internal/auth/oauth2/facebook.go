package oauth2

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// Only the id field is requested from the Graph API.
const facebookProfileURL = "https://graph.facebook.com/me?fields=id"

type facebookProfile struct {
	ID string `json:"id"`
}

func NewFacebook(clientID, clientSecret, callbackURL string, onProfile ProfileHandler) *Provider {
	return &Provider{
		Name: "facebook",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"email"},
			Endpoint:     facebook.Endpoint,
		},
		ProfileURL: facebookProfileURL,
		decodeID:   decodeFacebookID,
		onProfile:  onProfile,
	}
}

func decodeFacebookID(data []byte) (string, error) {
	var profile facebookProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return "", fmt.Errorf("decode facebook profile: %w", err)
	}
	return profile.ID, nil
}
