package credentials

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`

func newTestStore(t *testing.T, pass string) *Store {
	t.Helper()
	s, err := NewStore(Config{BaseDir: t.TempDir(), Passphrase: pass}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewStoreRequiresPassphrase(t *testing.T) {
	_, err := NewStore(Config{BaseDir: t.TempDir()}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoPassphrase)
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := newTestStore(t, "test-passphrase-12345")

	_, err := s.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, s.StoreCredentials([]byte(testSecret)))
	got, err := s.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, testSecret, string(got))

	onDisk, err := os.ReadFile(filepath.Join(s.baseDir, credentialsFile))
	require.NoError(t, err)
	assert.NotContains(t, string(onDisk), "client_secret")

	assert.Error(t, s.StoreCredentials([]byte("not json")))
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t, "test-passphrase-12345")

	_, err := s.LoadToken()
	assert.ErrorIs(t, err, ErrNoToken)

	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}
	require.NoError(t, s.StoreToken(tok))

	got, err := s.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.Equal(t, tok.RefreshToken, got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))
}

func TestWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	a, err := NewStore(Config{BaseDir: dir, Passphrase: "right"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.StoreCredentials([]byte(testSecret)))

	b, err := NewStore(Config{BaseDir: dir, Passphrase: "wrong"}, zerolog.Nop())
	require.NoError(t, err)
	_, err = b.LoadCredentials()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredentials)
}

func TestSealOpen(t *testing.T) {
	s := newTestStore(t, "pass")
	plain := []byte("this is sensitive test data")

	sealed, err := s.seal(plain)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plain))

	again, err := s.seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "salt and nonce must differ per seal")

	opened, err := s.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)

	_, err = s.open(sealed[:10])
	assert.Error(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.open(sealed)
	assert.Error(t, err)
}

func TestOAuthConfig(t *testing.T) {
	s := newTestStore(t, "pass")
	_, err := s.OAuthConfig()
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, s.StoreCredentials([]byte(testSecret)))
	cfg, err := s.OAuthConfig()
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.readonly"}, cfg.Scopes)
}

func TestAuthorizeReadsCode(t *testing.T) {
	s := newTestStore(t, "pass")
	var out bytes.Buffer
	s.In = strings.NewReader("")
	s.Out = &out

	require.NoError(t, s.StoreCredentials([]byte(testSecret)))
	cfg, err := s.OAuthConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err = s.Authorize(ctx, cfg)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "accounts.google.com")
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t, "pass")
	require.NoError(t, s.StoreCredentials([]byte(testSecret)))
	require.NoError(t, s.StoreToken(&oauth2.Token{AccessToken: "a"}))

	require.NoError(t, s.Cleanup())
	_, err := s.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)
	_, err = s.LoadToken()
	assert.ErrorIs(t, err, ErrNoToken)

	assert.NoError(t, s.Cleanup())
}
