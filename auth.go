package xrplsale

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// expiryLeeway treats a session as expired slightly before its deadline.
	expiryLeeway = 30 * time.Second
	// reauthTimeout bounds a shared re-authentication round independent of any caller.
	reauthTimeout = 2 * time.Minute
)

var (
	// ErrNotAuthenticated is returned by Auth.Token when no wallet session exists.
	ErrNotAuthenticated = errors.New("no wallet session")
	// ErrSessionExpired is returned when the session expired and no Signer can renew it.
	ErrSessionExpired = errors.New("wallet session expired")
	// ErrNoChallenge is returned by Authenticate without a preceding GenerateChallenge.
	ErrNoChallenge = errors.New("no authentication challenge issued")
)

// AuthState is the wallet session state.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateChallengeIssued
	StateAuthenticated
	StateExpired
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// Challenge is a nonce issued by the platform for a wallet to sign.
type Challenge struct {
	Challenge     string `json:"challenge"`
	WalletAddress string `json:"wallet_address"`
	ExpiresAt     Time   `json:"expires_at"`
}

// AuthRequest proves ownership of a wallet by signing a Challenge.
type AuthRequest struct {
	WalletAddress string `json:"wallet_address"`
	Challenge     string `json:"challenge"`
	Signature     string `json:"signature"`
	PublicKey     string `json:"public_key"`
	Timestamp     int64  `json:"timestamp"`
}

// AuthResponse is returned on successful wallet authentication.
type AuthResponse struct {
	Token         string `json:"token"`
	ExpiresAt     Time   `json:"expires_at"`
	WalletAddress string `json:"wallet_address"`
}

// AuthToken is a session token and its expiry. A zero ExpiresAt never expires locally.
type AuthToken struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token is unusable at now.
func (t AuthToken) Expired(now time.Time) bool {
	if t.Value == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expiryLeeway).Before(t.ExpiresAt)
}

// Signer signs authentication challenges on behalf of a wallet.
type Signer interface {
	Address() string
	SignChallenge(ctx context.Context, challenge string) (signature, publicKey string, err error)
}

// Auth owns the wallet session shared by every service of a Client.
type Auth struct {
	client *Client

	mu        sync.Mutex
	state     AuthState
	token     AuthToken
	challenge *Challenge

	signer  Signer
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
	group   singleflight.Group

	now func() time.Time
}

func newAuth(c *Client) *Auth {
	return &Auth{
		client: c,
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// State returns the current session state, moving Authenticated to Expired once the token lapses.
func (a *Auth) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.checkExpiry()
	return a.state
}

// checkExpiry must be called with a.mu held.
func (a *Auth) checkExpiry() {
	if a.state == StateAuthenticated && a.token.Expired(a.now()) {
		a.state = StateExpired
	}
}

// GenerateChallenge requests a challenge for wallet. The session moves to ChallengeIssued
// unless it is still Authenticated.
func (a *Auth) GenerateChallenge(ctx context.Context, wallet string) (*Challenge, error) {
	if wallet == "" {
		return nil, errors.New("wallet address is required")
	}

	var ch Challenge
	err := a.client.call(ctx, request{
		method: http.MethodPost,
		path:   "auth/challenge",
		body:   map[string]string{"wallet_address": wallet},
		auth:   authAPIKey,
	}, &ch)
	if err != nil {
		return nil, err
	}
	if ch.Challenge == "" {
		return nil, errors.New("empty challenge in response")
	}
	if ch.WalletAddress == "" {
		ch.WalletAddress = wallet
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.checkExpiry()
	a.challenge = &ch
	if a.state != StateAuthenticated {
		a.state = StateChallengeIssued
	}

	return &ch, nil
}

// Authenticate submits a signed challenge. On success the session becomes Authenticated;
// on failure the pending challenge is discarded.
func (a *Auth) Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	a.mu.Lock()
	pending := a.challenge
	a.mu.Unlock()

	if pending == nil {
		return nil, ErrNoChallenge
	}
	if req.Challenge == "" {
		req.Challenge = pending.Challenge
	}
	if req.WalletAddress == "" {
		req.WalletAddress = pending.WalletAddress
	}
	if req.Timestamp == 0 {
		req.Timestamp = a.now().Unix()
	}

	var resp AuthResponse
	err := a.client.call(ctx, request{
		method: http.MethodPost,
		path:   "auth/authenticate",
		body:   req,
		auth:   authAPIKey,
	}, &resp)

	var token AuthToken
	if err == nil {
		token, err = a.sessionToken(resp)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.challenge = nil
	if err != nil {
		a.checkExpiry()
		if a.state == StateChallengeIssued {
			a.state = StateUnauthenticated
		}
		return nil, err
	}

	a.token = token
	a.state = StateAuthenticated
	a.client.logger.Info("wallet authenticated", "wallet", req.WalletAddress, "expires_at", token.ExpiresAt)

	return &resp, nil
}

// SetToken installs a session token obtained elsewhere. A zero expiresAt is read from the
// token's JWT exp claim when present.
func (a *Auth) SetToken(token string, expiresAt time.Time) error {
	t, err := a.sessionToken(AuthResponse{Token: token, ExpiresAt: Time{expiresAt}})
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = t
	a.challenge = nil
	a.state = StateAuthenticated

	return nil
}

// Logout ends the session on the server and locally. The local session is cleared even if
// the server call fails.
func (a *Auth) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.checkExpiry()
	active := a.state == StateAuthenticated
	a.mu.Unlock()

	var err error
	if active {
		err = a.client.call(ctx, request{
			method: http.MethodPost,
			path:   "auth/logout",
			auth:   authSession,
		}, nil)
	}

	a.mu.Lock()
	a.token = AuthToken{}
	a.challenge = nil
	a.state = StateUnauthenticated
	a.mu.Unlock()

	return err
}

// Token returns a valid session token. An expired session is renewed through the Signer,
// with concurrent callers sharing a single challenge-response round. Without a Signer it
// returns ErrSessionExpired, or ErrNotAuthenticated when no session was ever established.
func (a *Auth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	a.checkExpiry()
	state, token, signer := a.state, a.token.Value, a.signer
	a.mu.Unlock()

	if state == StateAuthenticated {
		return token, nil
	}

	if signer == nil {
		if state == StateExpired {
			return "", ErrSessionExpired
		}
		return "", ErrNotAuthenticated
	}

	return a.reauthenticate(ctx, signer)
}

// reauthenticate runs one challenge-response round shared by all concurrent callers.
func (a *Auth) reauthenticate(ctx context.Context, signer Signer) (string, error) {
	ch := a.group.DoChan("session", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reauthTimeout)
		defer cancel()

		// A round that finished just before this one started already renewed the session.
		a.mu.Lock()
		a.checkExpiry()
		if a.state == StateAuthenticated {
			token := a.token.Value
			a.mu.Unlock()
			return token, nil
		}
		a.mu.Unlock()

		a.client.logger.Info("renewing wallet session", "wallet", signer.Address())

		challenge, err := a.GenerateChallenge(rctx, signer.Address())
		if err != nil {
			return "", fmt.Errorf("generate challenge: %w", err)
		}

		sig, pub, err := signer.SignChallenge(rctx, challenge.Challenge)
		if err != nil {
			a.dropChallenge()
			return "", fmt.Errorf("sign challenge: %w", err)
		}

		resp, err := a.Authenticate(rctx, AuthRequest{
			WalletAddress: signer.Address(),
			Challenge:     challenge.Challenge,
			Signature:     sig,
			PublicKey:     pub,
		})
		if err != nil {
			return "", fmt.Errorf("authenticate: %w", err)
		}

		return resp.Token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (a *Auth) dropChallenge() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.challenge = nil
	if a.state == StateChallengeIssued {
		a.state = StateUnauthenticated
	}
}

// expire marks token as rejected by the server. A newer token is left alone.
func (a *Auth) expire(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token.Value == token && a.state == StateAuthenticated {
		a.state = StateExpired
		a.client.logger.Info("wallet session rejected by server")
	}
}

// sessionToken builds an AuthToken, falling back to the JWT exp claim for the expiry.
func (a *Auth) sessionToken(resp AuthResponse) (AuthToken, error) {
	if resp.Token == "" {
		return AuthToken{}, errors.New("empty session token")
	}

	t := AuthToken{Value: resp.Token, ExpiresAt: resp.ExpiresAt.Time}
	if !t.ExpiresAt.IsZero() {
		return t, nil
	}

	exp, err := a.tokenExpiry(resp.Token)
	if err != nil {
		return AuthToken{}, err
	}
	t.ExpiresAt = exp

	return t, nil
}

// tokenExpiry reads the exp claim. Opaque tokens have no local expiry. With a key
// function configured the signature is verified as well.
func (a *Auth) tokenExpiry(token string) (time.Time, error) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, nil
	}

	claims := &jwt.RegisteredClaims{}
	if a.keyFunc != nil {
		if _, err := a.parser.ParseWithClaims(token, claims, a.keyFunc); err != nil {
			return time.Time{}, fmt.Errorf("unable to parse token: %w", err)
		}
	} else if _, _, err := a.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("unable to parse token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}

	return claims.ExpiresAt.Time, nil
}

// TokenSource adapts the session to oauth2.TokenSource for use with other HTTP clients.
func (a *Auth) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &authTokenSource{ctx: ctx, auth: a}
}

type authTokenSource struct {
	ctx  context.Context
	auth *Auth
}

func (s *authTokenSource) Token() (*oauth2.Token, error) {
	value, err := s.auth.Token(s.ctx)
	if err != nil {
		return nil, err
	}

	s.auth.mu.Lock()
	expiry := s.auth.token.ExpiresAt
	s.auth.mu.Unlock()

	return &oauth2.Token{
		AccessToken: value,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}

// Ed25519Signer signs challenges with an ed25519 wallet key.
type Ed25519Signer struct {
	address string
	key     ed25519.PrivateKey
}

// NewEd25519Signer returns a Signer for the wallet at address.
func NewEd25519Signer(address string, key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if address == "" {
		return nil, errors.New("wallet address is required")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(key))
	}
	return &Ed25519Signer{address: address, key: key}, nil
}

// Address implements Signer.
func (s *Ed25519Signer) Address() string {
	return s.address
}

// SignChallenge implements Signer. The public key uses the XRPL "ED" prefixed hex form.
func (s *Ed25519Signer) SignChallenge(_ context.Context, challenge string) (string, string, error) {
	sig := ed25519.Sign(s.key, []byte(challenge))
	pub := s.key.Public().(ed25519.PublicKey)

	return hex.EncodeToString(sig), "ED" + strings.ToUpper(hex.EncodeToString(pub)), nil
}
