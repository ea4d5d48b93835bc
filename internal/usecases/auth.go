package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// MembershipChecker reports whether a Telegram user belongs to the group.
// Implementations must treat an unconfigured group as membership.
type MembershipChecker interface {
	IsChatMember(telegramID int64) bool
}

// Authorization failure reasons, mapped to user-facing texts by the caller.
var (
	ErrNotMember   = errors.New("not a group member")
	ErrBadUsername = errors.New("username lacks the access prefix")
	ErrNotInvited  = errors.New("login not on the allow list")
)

// AuthService authorizes Telegram users against the imported allow list
// and registers them on first contact.
type AuthService struct {
	users         interfaces.UserStore
	allowList     interfaces.AllowList
	membership    MembershipChecker
	adminUsername string
	loginPrefix   string
}

func NewAuthService(users interfaces.UserStore, allowList interfaces.AllowList, membership MembershipChecker, adminUsername, loginPrefix string) *AuthService {
	return &AuthService{
		users:         users,
		allowList:     allowList,
		membership:    membership,
		adminUsername: strings.ToLower(adminUsername),
		loginPrefix:   strings.ToLower(loginPrefix),
	}
}

// LoginPrefix returns the configured access prefix (lowercased).
func (s *AuthService) LoginPrefix() string { return s.loginPrefix }

// HasLoginPrefix reports whether the username carries the access prefix
// (case-insensitive).
func (s *AuthService) HasLoginPrefix(username string) bool {
	if username == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(username), s.loginPrefix)
}

// ExtractLogin strips the access prefix from a username and lowercases it.
func (s *AuthService) ExtractLogin(username string) string {
	lower := strings.ToLower(strings.TrimPrefix(username, "@"))
	return strings.TrimPrefix(lower, s.loginPrefix)
}

// EnsureUser returns the registered user for a Telegram id, re-checking
// group membership on every call. Returns (nil, nil) for users that must
// run /start first and ErrNotMember for users who left the group.
func (s *AuthService) EnsureUser(ctx context.Context, telegramID int64) (*entities.User, error) {
	if !s.membership.IsChatMember(telegramID) {
		return nil, ErrNotMember
	}
	return s.users.GetByTelegramID(ctx, telegramID)
}

// Register authorizes a first-time user: prefix check, allow-list lookup,
// record creation, allow-list consumption. The created user is admin iff
// the username matches the configured moderator.
func (s *AuthService) Register(ctx context.Context, telegramID int64, username, firstNameFallback string) (*entities.User, error) {
	if !s.HasLoginPrefix(username) {
		return nil, ErrBadUsername
	}

	login := s.ExtractLogin(username)
	entry, err := s.allowList.FindByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("allow list lookup: %w", err)
	}
	if entry == nil {
		return nil, ErrNotInvited
	}

	firstName := entry.FirstName
	if firstName == "" {
		firstName = firstNameFallback
	}

	user := &entities.User{
		TelegramID:       telegramID,
		Username:         strings.ToLower(username),
		UsernameOriginal: username,
		FirstName:        firstName,
		LastName:         entry.LastName,
		Login:            login,
		IsAdmin:          strings.ToLower(username) == s.adminUsername,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.allowList.MarkConsumed(ctx, login); err != nil {
		return nil, fmt.Errorf("mark allow list entry: %w", err)
	}
	return user, nil
}
