package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

var _ gateway.Authenticator = (*Client)(nil)

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         gateway.User `json:"user"`
}

func (t tokenResponse) session() *gateway.Session {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	default:
		tok.Expiry = claimedExpiry(t.AccessToken)
	}
	return &gateway.Session{Token: tok, User: t.User}
}

// claimedExpiry reads exp from the access token without verifying it. The
// gateway signs it; we only need to know when to refresh.
func claimedExpiry(accessToken string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.baseURL + authPrefix + "authorize",
			TokenURL: c.baseURL + authPrefix + "token",
		},
	}
}

func (c *Client) SignInURL(provider, redirectTo, state string) (string, string) {
	verifier := oauth2.GenerateVerifier()
	authURL := c.oauthConfig().AuthCodeURL(state,
		oauth2.SetAuthURLParam("provider", provider),
		oauth2.SetAuthURLParam("redirect_to", redirectTo),
		oauth2.S256ChallengeOption(verifier),
	)
	return authURL, verifier
}

func (c *Client) token(ctx context.Context, op, grantType string, body any) (*gateway.Session, error) {
	var resp tokenResponse
	_, err := c.do(ctx, op, "", request{
		method: http.MethodPost,
		path:   authPrefix + "token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
		bearer: c.apiKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(), nil
}

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*gateway.Session, error) {
	return c.token(ctx, "exchange code", "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*gateway.Session, error) {
	return c.token(ctx, "refresh", "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (c *Client) User(ctx context.Context, accessToken string) (*gateway.User, error) {
	var user gateway.User
	_, err := c.do(ctx, "user", "", request{
		method: http.MethodGet,
		path:   authPrefix + "user",
		bearer: accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, "sign out", "", request{
		method: http.MethodPost,
		path:   authPrefix + "logout",
		bearer: accessToken,
	}, nil)
	return err
}
