package delta

import (
	"context"
)

// PlayerInfo is the character summary of a bound account.
type PlayerInfo struct {
	Player struct {
		CharacName string `json:"charac_name"`
	} `json:"player"`
	Money Amount `json:"money"`
}

// CharacterName returns the display name of the character.
func (p *PlayerInfo) CharacterName() string {
	return p.Player.CharacName
}

// GetPlayerInfo fetches the character summary for the given credentials.
func (c *Client) GetPlayerInfo(ctx context.Context, creds Credentials) (*PlayerInfo, error) {
	var info PlayerInfo
	if err := c.ideRequest(ctx, "316969", "NoOapI", creds, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// dailyPasswordData wraps the zone name to password map.
type dailyPasswordData struct {
	Data map[string]string `json:"data"`
}

// GetDailyPassword fetches today's password-door passwords, keyed by zone
// name. An empty map means the remote had nothing for this account.
func (c *Client) GetDailyPassword(ctx context.Context, creds Credentials) (map[string]string, error) {
	var res dailyPasswordData
	if err := c.ideRequest(ctx, "316970", "VfyNlL", creds, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}
