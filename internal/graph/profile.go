package graph

import "context"

// Me returns the token owner's profile.
func (c *Client) Me(ctx context.Context, token string) (map[string]any, error) {
	return c.Get(ctx, token, "/me", nil)
}

// Photo returns the token owner's profile photo and its content type.
func (c *Client) Photo(ctx context.Context, token string) ([]byte, string, error) {
	return c.GetBinary(ctx, token, "/me/photo/$value")
}
