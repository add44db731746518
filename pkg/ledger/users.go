package ledger

import "context"

// User is the authenticated GitHub user, as much of it as login needs.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
}

// CurrentUser returns the user the configured token authenticates as.
// Used by `regsweep login` to verify a token before storing it.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
