package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/tripsplit/tripsplit/internal/cli/auth"
	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/groupselect"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
	"github.com/tripsplit/tripsplit/internal/logger"
	"github.com/tripsplit/tripsplit/internal/session"
)

const (
	defaultServerURL = "http://localhost:8080"
	dashboardPath    = "/dashboard"
)

// ServerFlag holds the value of the persistent --server flag
var ServerFlag string

// options carries the dependencies every command needs. Tests replace them
// through the With* functions.
type options struct {
	serverURL  string
	store      auth.TokenStore
	out        io.Writer
	httpClient *http.Client
	prompt     groupselect.PromptFunc
	logger     zerolog.Logger
}

// Option configures a command run
type Option func(*options)

// WithServer sets the API base URL
func WithServer(serverURL string) Option {
	return func(o *options) { o.serverURL = serverURL }
}

// WithTokenStore sets where tokens are kept
func WithTokenStore(store auth.TokenStore) Option {
	return func(o *options) { o.store = store }
}

// WithOutput sets the writer for command output
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithHTTPClient sets a custom HTTP client for API calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithGroupPrompt replaces the interactive group picker
func WithGroupPrompt(prompt groupselect.PromptFunc) Option {
	return func(o *options) { o.prompt = prompt }
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		store:  auth.Default,
		out:    os.Stdout,
		logger: logger.New("console", os.Stderr).Level(zerolog.WarnLevel),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.serverURL == "" {
		serverURL, err := resolveServer(ServerFlag)
		if err != nil {
			return nil, err
		}
		o.serverURL = serverURL
	}
	return o, nil
}

// resolveServer picks the API address: flag, then TRIPSPLIT_SERVER, then
// the saved user config, then the local default.
func resolveServer(flag string) (string, error) {
	if flag != "" {
		return strings.TrimRight(flag, "/"), nil
	}
	if env := os.Getenv("TRIPSPLIT_SERVER"); env != "" {
		return strings.TrimRight(env, "/"), nil
	}
	cfg, err := userconfig.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load user config: %w", err)
	}
	if cfg.ServerURL != "" {
		return cfg.ServerURL, nil
	}
	return defaultServerURL, nil
}

func (o *options) newClient() *client.Client {
	api := client.New(o.serverURL)
	if o.httpClient != nil {
		api.SetHTTPClient(o.httpClient)
	}
	return api
}

// requireSession restores the stored session and runs it through the auth
// guard. It returns an authenticated client, or auth.ErrNotAuthenticated
// after printing the login hint.
func requireSession(ctx context.Context, o *options) (*client.Client, *session.User, error) {
	api := o.newClient()

	token, err := o.store.LoadToken(o.serverURL)
	if err != nil && !errors.Is(err, auth.ErrNotAuthenticated) {
		return nil, nil, err
	}
	api.SetToken(token)

	container := session.NewContainer(func(ctx context.Context) (*session.User, error) {
		if token == "" {
			return nil, nil
		}
		me, err := api.Me(ctx)
		if client.IsUnauthorized(err) {
			// Expired or revoked, forget it
			_ = o.store.DeleteToken(o.serverURL)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &session.User{ID: me.ID, Email: me.Email, Name: me.Name}, nil
	}, o.logger)

	hook := session.NewAuth(container)
	defer hook.Close()

	var redirectedTo string
	router := session.NewRouter(dashboardPath, func(path string) {
		redirectedTo = path
	})
	guard := session.NewGuard(hook, router)
	stop := guard.Start()
	defer stop()

	hook.Hydrate(ctx)
	state, err := guard.Wait(ctx)
	if err != nil {
		return nil, nil, err
	}
	if state.Err != nil {
		return nil, nil, fmt.Errorf("failed to restore session: %w", state.Err)
	}
	if !guard.ShouldRender() {
		if redirectedTo != "" {
			fmt.Fprintf(o.out, "Not signed in to %s. Run 'tripsplit login' (%s%s).\n", o.serverURL, o.serverURL, redirectedTo)
		}
		return nil, nil, auth.ErrNotAuthenticated
	}
	return api, state.User, nil
}

// readPassword reads a password from the terminal without echo
func readPassword(label string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or TRIPSPLIT_PASSWORD env var)")
	}
	fmt.Print(label)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// formatCents renders minor units as a decimal amount, e.g. -1234 -> "-12.34"
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// parseAmount parses a positive decimal amount with at most two fraction
// digits into minor units.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q: use a positive number with up to two decimals", s)
	}
	frac += strings.Repeat("0", 2-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)

	cents := w*100 + f
	if cents <= 0 {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	return cents, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// memberNames maps user ids to display names for a group
func memberNames(group *client.Group) map[string]string {
	names := make(map[string]string, len(group.Members))
	for _, m := range group.Members {
		names[m.UserID] = m.Name
	}
	return names
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}
