// Package signing issues and verifies the short-lived capability tokens that
// authorize the font proxy to fetch one upstream URL.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

// Token and secret parameters.
const (
	DefaultTTL      = 15 * time.Minute
	MinSecretLength = 16
	ProxyPath       = "/api/font"
)

// Verification and configuration failures.
var (
	ErrMissingSecret     = errors.New("font proxy secret must be set to at least 16 characters")
	ErrMalformedToken    = errors.New("malformed font token")
	ErrTokenExpired      = errors.New("font token expired")
	ErrSignatureMismatch = errors.New("font token signature mismatch")
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Params are the query parameters of a proxy URL, still encoded.
type Params struct {
	EncodedURL     string // u
	EncodedReferer string // r
	Download       string // d, "0" or "1"
	Token          string // t
}

// Option customizes a Signer.
type Option func(*Signer)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Signer is safe for concurrent use.
type Signer struct {
	configured []byte
	production bool
	ttl        time.Duration
	clock      Clock

	once    sync.Once
	secret  []byte
	initErr error
}

// New returns a signer. A secret shorter than MinSecretLength is ignored:
// in production signing then fails with ErrMissingSecret, elsewhere a random
// per-process secret is generated on first use.
func New(secret string, production bool, opts ...Option) *Signer {
	s := &Signer{
		production: production,
		ttl:        DefaultTTL,
		clock:      wallClock{},
	}
	if len(secret) >= MinSecretLength {
		s.configured = []byte(secret)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signer) key() ([]byte, error) {
	s.once.Do(func() {
		switch {
		case s.configured != nil:
			s.secret = s.configured
		case s.production:
			s.initErr = ErrMissingSecret
		default:
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				s.initErr = fmt.Errorf("generate ephemeral secret: %w", err)
				return
			}
			s.secret = []byte(hex.EncodeToString(buf))
		}
	})
	return s.secret, s.initErr
}

// CreateSignedProxyURL returns the relative proxy path for fontURL.
func (s *Signer) CreateSignedProxyURL(fontURL, referer string, download bool) (string, error) {
	key, err := s.key()
	if err != nil {
		return "", err
	}

	u := fontutil.Base64URLEncode(fontURL)
	r := fontutil.Base64URLEncode(referer)
	d := "0"
	if download {
		d = "1"
	}
	expiresAt := s.clock.Now().Add(s.ttl).UnixMilli()
	token := strconv.FormatInt(expiresAt, 10) + "." + hex.EncodeToString(sign(key, u, r, d, expiresAt))

	q := url.Values{}
	q.Set("u", u)
	q.Set("r", r)
	q.Set("d", d)
	q.Set("t", token)
	return ProxyPath + "?" + q.Encode(), nil
}

// Verify checks a token against its parameters. Expiry is checked before
// the signature.
func (s *Signer) Verify(p Params) error {
	key, err := s.key()
	if err != nil {
		return err
	}
	if p.Download != "0" && p.Download != "1" {
		return ErrMalformedToken
	}

	rawExpiry, rawSig, ok := strings.Cut(p.Token, ".")
	if !ok || rawExpiry == "" {
		return ErrMalformedToken
	}
	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return ErrMalformedToken
	}
	sig, err := hex.DecodeString(rawSig)
	if err != nil || len(sig) != sha256.Size {
		return ErrMalformedToken
	}

	if s.clock.Now().UnixMilli() > expiresAt {
		return ErrTokenExpired
	}
	if !hmac.Equal(sig, sign(key, p.EncodedURL, p.EncodedReferer, p.Download, expiresAt)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Decode returns the font URL and referer carried by p.
func Decode(p Params) (fontURL, referer string, err error) {
	fontURL, err = fontutil.Base64URLDecode(p.EncodedURL)
	if err != nil {
		return "", "", fmt.Errorf("decode font url: %w", err)
	}
	referer, err = fontutil.Base64URLDecode(p.EncodedReferer)
	if err != nil {
		return "", "", fmt.Errorf("decode referer: %w", err)
	}
	return fontURL, referer, nil
}

func sign(key []byte, u, r, d string, expiresAt int64) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(u + "." + r + "." + d + "." + strconv.FormatInt(expiresAt, 10)))
	return mac.Sum(nil)
}
