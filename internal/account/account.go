// Package account implements registration, login and the subscription
// state machine on top of a user store.
package account

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/internal/payment"
	"github.com/menta2k/image-assistant/internal/security"
	"github.com/menta2k/image-assistant/internal/session"
	"github.com/menta2k/image-assistant/internal/store"
	"github.com/menta2k/image-assistant/pkg/quota"
)

var (
	// ErrAuthFailure is returned for an unknown user or a wrong password
	ErrAuthFailure = errors.New("invalid username or password")
	// ErrDuplicateUser is returned when registering a taken username
	ErrDuplicateUser = errors.New("username already exists")
	// ErrInvalidCredentials is returned for an empty username or password, or
	// a username that is not valid UTF-8
	ErrInvalidCredentials = errors.New("username and password are required")
	// ErrNotLoggedIn is returned for account actions on a logged-out session
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrInvalidTransition is returned when an action does not apply to the
	// session's current state
	ErrInvalidTransition = errors.New("action not allowed in current state")
)

// State is the account state of a session
type State int

const (
	LoggedOut State = iota
	Browsing
	PaymentPending
	Subscribed
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Browsing:
		return "browsing"
	case PaymentPending:
		return "payment_pending"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateOf derives the state from the session fields
func StateOf(sess *session.Session) State {
	switch {
	case !sess.LoggedIn:
		return LoggedOut
	case sess.ShowPaymentPage:
		return PaymentPending
	case sess.SubscriptionStatus:
		return Subscribed
	default:
		return Browsing
	}
}

// Service performs account actions. Session arguments must be locked by the
// caller.
type Service struct {
	store      store.Store
	bcryptCost int
	logger     *zap.Logger
}

// NewService creates an account service. bcryptCost <= 0 uses the bcrypt default.
func NewService(s store.Store, bcryptCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, bcryptCost: bcryptCost, logger: logger}
}

// validUsername rejects names the JSON store could not keep byte for byte
func validUsername(username string) bool {
	return username != "" && utf8.ValidString(username)
}

// Register creates an account with zero usage and no subscription. It does
// not log the user in.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if !validUsername(username) || password == "" {
		return ErrInvalidCredentials
	}

	hash, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Create(ctx, username, store.User{Password: hash})
	if errors.Is(err, store.ErrExists) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user", username))
	return nil
}

// Authenticate checks credentials and returns the stored record. A legacy
// plaintext password is replaced by a hash on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	if !validUsername(username) {
		return store.User{}, ErrAuthFailure
	}
	u, err := s.store.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrAuthFailure
	}
	if err != nil {
		return store.User{}, fmt.Errorf("failed to load user: %w", err)
	}

	if !security.ComparePasswords(u.Password, password) {
		return store.User{}, ErrAuthFailure
	}

	if !security.IsHashed(u.Password) {
		s.upgradePassword(ctx, username, password)
	}
	return u, nil
}

func (s *Service) upgradePassword(ctx context.Context, username, password string) {
	hash, err := security.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Warn("failed to hash legacy password", zap.String("user", username), zap.Error(err))
		return
	}
	_, err = s.store.Update(ctx, username, func(u *store.User) error {
		u.Password = hash
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to upgrade legacy password", zap.String("user", username), zap.Error(err))
		return
	}
	s.logger.Info("legacy password upgraded", zap.String("user", username))
}

// Login authenticates and rehydrates sess from the stored record. On failure
// the session is left unchanged.
func (s *Service) Login(ctx context.Context, sess *session.Session, username, password string) error {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}

	if sess.LoggedIn && sess.CurrentUser != username {
		sess.Reset()
	}
	sess.Login(username, u.UsageCount, u.SubscriptionStatus)

	s.logger.Info("user logged in", zap.String("user", username))
	return nil
}

// Logout resets sess; its history is discarded
func (s *Service) Logout(sess *session.Session) {
	if sess.LoggedIn {
		s.logger.Info("user logged out", zap.String("user", sess.CurrentUser))
	}
	sess.Reset()
}

// RequestSubscription shows the payment form. It does nothing for an
// account that is already subscribed.
func (s *Service) RequestSubscription(sess *session.Session) error {
	if !sess.LoggedIn {
		return ErrNotLoggedIn
	}
	if sess.SubscriptionStatus {
		return nil
	}
	sess.ShowPaymentPage = true
	return nil
}

// SubmitPayment completes a pending subscription. An incomplete form returns
// payment.ErrMissingPaymentField and leaves the session on the payment form.
func (s *Service) SubmitPayment(ctx context.Context, sess *session.Session, form payment.Form) (payment.Receipt, error) {
	if !sess.LoggedIn {
		return payment.Receipt{}, ErrNotLoggedIn
	}
	if StateOf(sess) != PaymentPending {
		return payment.Receipt{}, ErrInvalidTransition
	}

	receipt, err := payment.Process(form)
	if err != nil {
		return payment.Receipt{}, err
	}

	if err := s.setSubscription(ctx, sess, true); err != nil {
		return payment.Receipt{}, err
	}
	sess.ShowPaymentPage = false

	s.logger.Info("subscription started",
		zap.String("user", sess.CurrentUser),
		zap.String("receipt", receipt.ID.String()))
	return receipt, nil
}

// CancelPayment leaves the payment form without subscribing
func (s *Service) CancelPayment(sess *session.Session) error {
	if StateOf(sess) != PaymentPending {
		return ErrInvalidTransition
	}
	sess.ShowPaymentPage = false
	return nil
}

// CancelSubscription turns the subscription off and persists it
func (s *Service) CancelSubscription(ctx context.Context, sess *session.Session) error {
	if !sess.LoggedIn {
		return ErrNotLoggedIn
	}
	if StateOf(sess) != Subscribed {
		return ErrInvalidTransition
	}
	if err := s.setSubscription(ctx, sess, false); err != nil {
		return err
	}
	s.logger.Info("subscription cancelled", zap.String("user", sess.CurrentUser))
	return nil
}

func (s *Service) setSubscription(ctx context.Context, sess *session.Session, on bool) error {
	u, err := s.store.Update(ctx, sess.CurrentUser, func(u *store.User) error {
		u.SubscriptionStatus = on
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	sess.SubscriptionStatus = u.SubscriptionStatus
	return nil
}

// RecordUsage counts one analysis against the session's account before it
// runs. The quota is checked against the stored record in the same update,
// so every session of an account shares one limit; a quota.ExceededError is
// returned and nothing is counted once a free account is used up. When the
// store fails the session's cached count is checked and advanced instead and
// the store error is returned for the caller to report.
func (s *Service) RecordUsage(ctx context.Context, sess *session.Session) (int, error) {
	if !sess.LoggedIn {
		return 0, ErrNotLoggedIn
	}

	u, err := s.store.Update(ctx, sess.CurrentUser, func(u *store.User) error {
		if err := quota.Check(u.UsageCount, u.SubscriptionStatus); err != nil {
			return err
		}
		u.UsageCount++
		return nil
	})

	var exceeded quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		sess.UsageCount = exceeded.Used
		sess.SubscriptionStatus = false
		return sess.UsageCount, err
	case err != nil:
		if qerr := quota.Check(sess.UsageCount, sess.SubscriptionStatus); qerr != nil {
			return sess.UsageCount, qerr
		}
		sess.UsageCount++
		return sess.UsageCount, fmt.Errorf("failed to persist usage: %w", err)
	}

	sess.UsageCount = u.UsageCount
	sess.SubscriptionStatus = u.SubscriptionStatus
	return sess.UsageCount, nil
}
