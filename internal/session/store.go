package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/metrics"
	"pumpdash/dashboard/internal/models"
)

const (
	loginPath       = "/api/auth/login"
	logoutPath      = "/api/auth/logout"
	userDetailsPath = "/api/auth/user-details"
)

var ErrEmptyCredentials = errors.New("email and password required")

// AuthError reports a rejected login. It wraps the transport error.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Gateway is the subset of the API wrapper the store needs.
type Gateway interface {
	Get(ctx context.Context, path string, opts *apiclient.Options) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any, opts *apiclient.Options) (json.RawMessage, error)
	// ResetSession drops the upstream session credentials held locally.
	ResetSession()
}

type State struct {
	LoggedIn  bool        `json:"loggedIn"`
	User      models.User `json:"user"`
	LastError string      `json:"lastError,omitempty"`
}

// Store owns one page-session's login state. Only its own methods mutate it.
type Store struct {
	mu      sync.Mutex
	state   State
	api     Gateway
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewStore(api Gateway, log zerolog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		state:   State{User: models.EmptyUser()},
		api:     api,
		log:     log,
		metrics: m,
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.fail(ErrEmptyCredentials)
		s.metrics.Login(false)
		return &AuthError{Err: ErrEmptyCredentials}
	}

	raw, err := s.api.Post(ctx, loginPath, map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err == nil {
		err = s.signIn(raw)
	}
	if err != nil {
		s.fail(err)
		s.metrics.Login(false)
		s.log.Info().Err(err).Msg("login rejected")
		return &AuthError{Err: err}
	}

	s.metrics.Login(true)
	s.log.Info().Str("user_id", s.Snapshot().User.ID).Msg("logged in")
	return nil
}

// Logout invalidates the remote session on a best-effort basis. Local
// state, including the upstream cookie, is reset whatever the remote outcome.
func (s *Store) Logout(ctx context.Context) {
	if _, err := s.api.Post(ctx, logoutPath, nil, nil); err != nil {
		s.log.Warn().Err(err).Msg("remote logout failed")
	}
	s.api.ResetSession()

	s.mu.Lock()
	s.state = State{User: models.EmptyUser()}
	s.mu.Unlock()
}

// FetchCurrentUser restores a session from the upstream cookie. Failure
// means "not logged in" and is not reported.
func (s *Store) FetchCurrentUser(ctx context.Context) {
	raw, err := s.api.Get(ctx, userDetailsPath, nil)
	if err == nil {
		err = s.signIn(raw)
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("no current user")
		s.mu.Lock()
		s.state.LoggedIn = false
		s.state.User = models.EmptyUser()
		s.mu.Unlock()
	}
}

// Resolve returns the cached state when logged in and otherwise asks the
// upstream who the current user is first.
func (s *Store) Resolve(ctx context.Context) State {
	if st := s.Snapshot(); st.LoggedIn {
		return st
	}
	s.FetchCurrentUser(ctx)
	return s.Snapshot()
}

// RecordError keeps the message of an error that reached the app boundary.
func (s *Store) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.state.LastError = err.Error()
	s.mu.Unlock()
}

func (s *Store) signIn(raw json.RawMessage) error {
	var payload map[string]any
	if err := apiclient.Decode(raw, &payload); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.state.User
	if err := mergeUser(&user, payload); err != nil {
		return err
	}
	s.state.User = user
	s.state.LoggedIn = true
	s.state.LastError = ""
	return nil
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LoggedIn = false
	s.state.User = models.EmptyUser()
	s.state.LastError = err.Error()
}

// mergeUser overwrites only the fields present in payload.
func mergeUser(user *models.User, payload map[string]any) error {
	if payload == nil {
		return nil
	}
	if id, ok := payload["_id"]; ok {
		if _, has := payload["id"]; !has {
			payload["id"] = id
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           user,
		WeaklyTypedInput: true,
		DecodeHook:       roleHook,
	})
	if err != nil {
		return fmt.Errorf("user decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return fmt.Errorf("decode user: %w", err)
	}
	return nil
}

func roleHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(models.UserRole(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	name := reflect.ValueOf(data).String()
	if _, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
		return strings.TrimSpace(name), nil
	}
	// unknown names get the least privilege
	role, _ := models.ParseUserRole(name)
	return role, nil
}
