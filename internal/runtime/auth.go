package runtime

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/drive/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	gsc "google.golang.org/api/searchconsole/v1"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	appDir         = "gscreport"
	tokenFileName  = "token.json"
	localRedirect  = "http://localhost"
	stateByteCount = 16
)

// Scopes are requested on first sign-in. Changing them requires deleting
// the cached token.
var Scopes = []string{
	gsc.WebmastersReadonlyScope,
	gsheets.SpreadsheetsScope,
	drive.DriveScope,
	analyticsdata.AnalyticsReadonlyScope,
	oauth2api.UserinfoEmailScope,
}

// DefaultTokenFile is token.json in the user config directory.
func DefaultTokenFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, appDir, tokenFileName), nil
}

// Authenticator runs the installed-app OAuth flow and caches the token.
type Authenticator struct {
	CredentialsFile string
	TokenFile       string
	// In and Out carry the interactive prompt on first sign-in.
	In  io.Reader
	Out io.Writer
}

// HTTPClient returns an authorized client. Without a cached token the user
// is asked to open the consent URL and paste back the code.
func (a Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	raw, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", a.CredentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = localRedirect
	}
	tokenFile := a.TokenFile
	if tokenFile == "" {
		if tokenFile, err = DefaultTokenFile(); err != nil {
			return nil, err
		}
	}
	tok, err := loadToken(tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		if tok, err = a.exchange(ctx, cfg); err != nil {
			return nil, err
		}
		if err = saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, cfg.TokenSource(ctx, tok)), nil
}

func (a Authenticator) exchange(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	in, out := a.In, a.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL, approve access and paste the code parameter of the redirect:\n\n%s\n\ncode: ", url)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, errors.New("empty authorization code")
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, stateByteCount)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	tok := &oauth2.Token{}
	if decodeErr := json.NewDecoder(f).Decode(tok); decodeErr != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, decodeErr)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create token %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if encodeErr := json.NewEncoder(f).Encode(tok); encodeErr != nil {
		return fmt.Errorf("encode token: %w", encodeErr)
	}
	return nil
}

// UserEmail returns the signed-in account's address for the activity log.
func UserEmail(ctx context.Context, client *http.Client) (string, error) {
	svc, err := oauth2api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("create oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get user info: %w", err)
	}
	return info.Email, nil
}

// DefaultLogger logs text to stderr at Info, or Debug when debug is set.
func DefaultLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
