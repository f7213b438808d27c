// Package credentials keeps the Gmail OAuth client secret and token on disk,
// encrypted with a key derived from a passphrase.
package credentials

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

const (
	credentialsFile = "credentials.enc"
	tokenFile       = "token.enc"

	saltSize   = 16
	kdfRounds  = 100000
	keySize    = 32
	defaultDir = ".newslettersync"
)

var (
	ErrNoPassphrase  = errors.New("credentials passphrase is required")
	ErrNoCredentials = errors.New("no stored OAuth client credentials, run setup first")
	ErrNoToken       = errors.New("no stored OAuth token")
)

// Store is safe for concurrent use.
type Store struct {
	baseDir    string
	passphrase string
	log        zerolog.Logger

	// In and Out carry the interactive authorization prompt.
	In  io.Reader
	Out io.Writer

	mu sync.Mutex
}

type Config struct {
	BaseDir    string // empty means ~/.newslettersync
	Passphrase string
}

func NewStore(cfg Config, log zerolog.Logger) (*Store, error) {
	if cfg.Passphrase == "" {
		return nil, ErrNoPassphrase
	}

	dir := cfg.BaseDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, defaultDir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}

	return &Store{
		baseDir:    dir,
		passphrase: cfg.Passphrase,
		log:        log.With().Str("component", "credentials").Logger(),
		In:         os.Stdin,
		Out:        os.Stdout,
	}, nil
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.passphrase), salt, kdfRounds, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal lays out salt | nonce | ciphertext.
func (s *Store) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return append(salt, gcm.Seal(nonce, nonce, plain, nil)...), nil
}

func (s *Store) open(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, errors.New("encrypted data too short")
	}
	gcm, err := s.aead(data[:saltSize])
	if err != nil {
		return nil, err
	}
	rest := data[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	plain, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

func (s *Store) write(name string, plain []byte) error {
	sealed, err := s.seal(plain)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.baseDir, name), sealed, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) read(name string) ([]byte, error) {
	sealed, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		return nil, err
	}
	plain, err := s.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return plain, nil
}

// StoreCredentials encrypts the OAuth client secret JSON downloaded from the
// Google Cloud console.
func (s *Store) StoreCredentials(raw []byte) error {
	if !json.Valid(raw) {
		return errors.New("invalid credentials JSON")
	}
	return s.write(credentialsFile, raw)
}

func (s *Store) LoadCredentials() ([]byte, error) {
	raw, err := s.read(credentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	return raw, err
}

// SetupFromFile stores the client secret found at path.
func (s *Store) SetupFromFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}
	return s.StoreCredentials(raw)
}

func (s *Store) StoreToken(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := s.write(tokenFile, raw); err != nil {
		return err
	}
	s.log.Debug().Time("expiry", tok.Expiry).Msg("token stored")
	return nil
}

// LoadToken returns ErrNoToken when no token was stored yet.
func (s *Store) LoadToken() (*oauth2.Token, error) {
	raw, err := s.read(tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &tok, nil
}

// OAuthConfig parses the stored client secret for scopes (read-only Gmail
// when none are given).
func (s *Store) OAuthConfig(scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = []string{gmail.GmailReadonlyScope}
	}
	raw, err := s.LoadCredentials()
	if err != nil {
		return nil, err
	}
	cfg, err := google.ConfigFromJSON(raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

// Client returns an authorized HTTP client. Without a stored token it runs
// the interactive consent flow first. Refreshed tokens are written back.
func (s *Store) Client(ctx context.Context, scopes ...string) (*http.Client, error) {
	cfg, err := s.OAuthConfig(scopes...)
	if err != nil {
		return nil, err
	}

	tok, err := s.LoadToken()
	if errors.Is(err, ErrNoToken) {
		if tok, err = s.Authorize(ctx, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	src := &persistingSource{
		base:  cfg.TokenSource(ctx, tok),
		store: s,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Authorize runs the copy-paste consent flow and stores the token.
func (s *Store) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	state := make([]byte, 32)
	if _, err := rand.Read(state); err != nil {
		return nil, fmt.Errorf("generate state token: %w", err)
	}

	url := cfg.AuthCodeURL(fmt.Sprintf("%x", state), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(s.Out, "Authorize this app, then paste the authorization code:")
	fmt.Fprintln(s.Out, url)
	fmt.Fprint(s.Out, "Enter authorization code: ")

	code, err := bufio.NewReader(s.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && code != "") {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	tok, err := cfg.Exchange(exchangeCtx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := s.StoreToken(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Cleanup removes everything the store wrote.
func (s *Store) Cleanup() error {
	var errs []error
	for _, name := range []string{credentialsFile, tokenFile} {
		if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// persistingSource stores every token the refresh flow hands out.
type persistingSource struct {
	base  oauth2.TokenSource
	store *Store

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.store.mu.Lock()
		err := p.store.StoreToken(tok)
		p.store.mu.Unlock()
		if err != nil {
			p.store.log.Warn().Err(err).Msg("persist refreshed token")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
