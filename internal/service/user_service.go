package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/config"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/otp"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
)

// saltCharset covers every character class used in generated salts.
const saltCharset = crypto.LowercaseAlphabet + crypto.UppercaseAlphabet + crypto.Digits + crypto.Symbols

// UserService handles account lifecycle operations.
type UserService struct {
	userRepo    repository.UserRepository
	apikeyRepo  repository.APIKeyRepository
	contentRepo repository.ContentRepository
	chunkRepo   repository.ChunkRepository
	encryptor   *crypto.Encryptor

	signup     config.SignupConfig
	upload     config.UploadConfig
	saltLength int

	usernameRe *regexp.Regexp
	passwordRe *regexp.Regexp

	logger zerolog.Logger
}

// NewUserService creates a new UserService. The signup regexes must already
// be validated by config loading.
func NewUserService(
	userRepo repository.UserRepository,
	apikeyRepo repository.APIKeyRepository,
	contentRepo repository.ContentRepository,
	chunkRepo repository.ChunkRepository,
	encryptor *crypto.Encryptor,
	signup config.SignupConfig,
	upload config.UploadConfig,
	saltLength int,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		apikeyRepo:  apikeyRepo,
		contentRepo: contentRepo,
		chunkRepo:   chunkRepo,
		encryptor:   encryptor,
		signup:      signup,
		upload:      upload,
		saltLength:  saltLength,
		usernameRe:  regexp.MustCompile(signup.UsernameRegex),
		passwordRe:  regexp.MustCompile(signup.PasswordRegex),
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Username string
	Password string

	// SignupPassword is the shared signup secret, required when the policy
	// demands one.
	SignupPassword string
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User

	// OTPSecret is the base32 TOTP secret, returned exactly once so the
	// caller can enroll an authenticator.
	OTPSecret string
}

// Create creates a new user account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	if s.signup.RequirePassword && input.SignupPassword != s.signup.Password {
		return nil, fmt.Errorf("%w: signup password missing or incorrect", ErrSignupRejected)
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	if !s.usernameRe.MatchString(username) {
		return nil, fmt.Errorf("%w: must be %s", ErrInvalidUsername, s.signup.UsernameDescription)
	}
	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to check username existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: username %q", ErrUserAlreadyExists, username)
	}

	salt, err := crypto.RandomString(s.saltLength, saltCharset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	otpSecret, err := otp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	encryptedSecret, err := s.encryptor.EncryptString(otpSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encrypt otp secret")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user := domain.NewUser(
		username,
		crypto.HashString(input.Password+salt),
		salt,
		encryptedSecret,
		s.upload.DefaultFileLimit,
		s.upload.DefaultTotalLimit,
	)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("%w: username %q", ErrUserAlreadyExists, username)
		}
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("User created")

	return &CreateUserOutput{User: user, OTPSecret: otpSecret}, nil
}

// validatePassword applies the configured length/charset regex plus the
// character-class requirements.
func (s *UserService) validatePassword(password string) error {
	if !s.passwordRe.MatchString(password) {
		return fmt.Errorf("%w: must be %s", ErrInvalidPassword, s.signup.PasswordDescription)
	}
	if !strings.ContainsAny(password, crypto.UppercaseAlphabet) ||
		!strings.ContainsAny(password, crypto.Digits) ||
		!strings.ContainsAny(password, "!@#$&*") {
		return fmt.Errorf("%w: must be %s", ErrInvalidPassword, s.signup.PasswordDescription)
	}
	return nil
}

// GetByID retrieves a user by id.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// BytesUploaded returns how much of the user's total quota is used.
func (s *UserService) BytesUploaded(ctx context.Context, userID int64) (int64, error) {
	used, err := s.chunkRepo.TotalSizeByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return used, nil
}

// ChangeUsername renames an account.
func (s *UserService) ChangeUsername(ctx context.Context, userID int64, newUsername string) error {
	username := strings.ToLower(strings.TrimSpace(newUsername))
	if !s.usernameRe.MatchString(username) {
		return fmt.Errorf("%w: must be %s", ErrInvalidUsername, s.signup.UsernameDescription)
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return fmt.Errorf("%w: username %q", ErrUserAlreadyExists, username)
	}

	user.Username = username
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to change username")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Str("username", username).Msg("Username changed")
	return nil
}

// ResetPassword replaces the account password with a freshly salted hash.
func (s *UserService) ResetPassword(ctx context.Context, userID int64, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	salt, err := crypto.RandomString(s.saltLength, saltCharset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user.Salt = salt
	user.PasswordHash = crypto.HashString(newPassword + salt)

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to reset password")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("Password reset")
	return nil
}

// SetQuota updates the per-file and total upload limits of an account.
func (s *UserService) SetQuota(ctx context.Context, userID, maxFileUpload, maxTotalUpload int64) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	user.MaxFileUpload = maxFileUpload
	user.MaxTotalUpload = maxTotalUpload

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("max_file_upload", maxFileUpload).
		Int64("max_total_upload", maxTotalUpload).
		Msg("Quota updated")
	return nil
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return users, nil
}

// OTPSecret decrypts and returns a user's TOTP secret. Used by the admin
// console to re-enroll an authenticator.
func (s *UserService) OTPSecret(ctx context.Context, userID int64) (string, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	secret, err := s.encryptor.DecryptString(user.OTPSecretEnc)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to decrypt otp secret")
		return "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return secret, nil
}

// DeleteAccount removes the account with all its API keys, content metadata,
// and persisted chunks.
func (s *UserService) DeleteAccount(ctx context.Context, userID int64) error {
	contents, err := s.contentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for _, content := range contents {
		if _, err := s.chunkRepo.DeleteFrom(ctx, content.ContentID, 0); err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if err := s.contentRepo.Delete(ctx, content.ContentID); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	if err := s.apikeyRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Int("contents", len(contents)).Msg("Account deleted")
	return nil
}
