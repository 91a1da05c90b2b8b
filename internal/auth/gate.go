package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/metrics"
	"github.com/prn-tf/mediahost/internal/otp"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
)

// Gate is the single authorization entry point route handlers use. It
// dispatches on the presented credential scheme, checks the required right
// against the resolved capability set, and enforces step-up OTP verification
// for rights flagged as requiring it.
type Gate struct {
	verifier  *CredentialVerifier
	users     repository.UserRepository
	encryptor *crypto.Encryptor

	// adminKeys is the configured break-glass allow-list. Empty means the
	// administrative override is disabled.
	adminKeys map[string]struct{}

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewGate creates the authorization gate.
func NewGate(verifier *CredentialVerifier, users repository.UserRepository, encryptor *crypto.Encryptor, adminKeys []string, m *metrics.Metrics, logger zerolog.Logger) *Gate {
	keys := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return &Gate{
		verifier:  verifier,
		users:     users,
		encryptor: encryptor,
		adminKeys: keys,
		metrics:   m,
		logger:    logger.With().Str("service", "auth-gate").Logger(),
	}
}

// Authorize resolves the presentation, requires the given right to be inside
// the resolved capability set, and applies the step-up OTP check. The result
// is either a per-scheme success or a Failure with message and status.
func (g *Gate) Authorize(ctx context.Context, required domain.Right, p Presentation) ClientAuthentication {
	result, otpExempt := g.resolve(ctx, p)

	if f, ok := result.(Failure); ok {
		g.metrics.AuthFailures.WithLabelValues(string(p.Scheme)).Inc()
		return f
	}

	_, rights, _ := Identity(result)
	if !rights.Contains(required) {
		g.metrics.AuthFailures.WithLabelValues(string(p.Scheme)).Inc()
		return failureForbidden("You may not perform this action.")
	}

	if required.RequireOTP && !otpExempt {
		if f := g.checkOTP(result, p.OTP); f != nil {
			g.metrics.AuthFailures.WithLabelValues(string(p.Scheme)).Inc()
			return *f
		}
	}

	return result
}

// Identify resolves the presentation without requiring any particular right.
// Used by routes that only need to know who the caller is.
func (g *Gate) Identify(ctx context.Context, p Presentation) ClientAuthentication {
	result, _ := g.resolve(ctx, p)
	if f, ok := result.(Failure); ok {
		g.metrics.AuthFailures.WithLabelValues(string(p.Scheme)).Inc()
		return f
	}
	return result
}

// resolve dispatches to the credential verifier by scheme. The second return
// reports whether the step-up OTP requirement is waived, which only an
// administrative key may do.
func (g *Gate) resolve(ctx context.Context, p Presentation) (ClientAuthentication, bool) {
	switch p.Scheme {
	case SchemeBasic:
		return g.verifier.ResolveBasic(ctx, p.Username, p.Password), false

	case SchemeBearer:
		return g.verifier.ResolveSession(ctx, p.Token), false

	case SchemeAPIKey:
		if _, ok := g.adminKeys[p.Token]; ok {
			return g.resolveAdmin(ctx, p), true
		}
		return g.verifier.ResolveAPIKey(ctx, p.Token), false

	default:
		return failureBadRequest("Improper authentication header."), false
	}
}

// resolveAdmin handles a key from the configured allow-list. The key itself
// has no identity, so the request must name a user to act for.
func (g *Gate) resolveAdmin(ctx context.Context, p Presentation) ClientAuthentication {
	if p.BehalfOf == "" {
		return failureBadRequest("No X-Behalf-Of header for the specified admin API key.")
	}

	user, err := g.users.GetByUsername(ctx, p.BehalfOf)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return failureBadRequest("The X-Behalf-Of username does not exist.")
		}
		g.logger.Error().Err(err).Str("username", p.BehalfOf).Msg("Failed to look up behalf-of user")
		return failureInternal("Something went wrong.")
	}

	g.logger.Warn().Str("username", user.Username).Msg("Administrative key used")

	return SuccessAPIKey{User: user, Rights: domain.FullRightSet(), Admin: true}
}

// checkOTP verifies the supplied one-time code against the authenticated
// user's secret. Missing and wrong codes fail differently.
func (g *Gate) checkOTP(result ClientAuthentication, code string) *Failure {
	if code == "" {
		f := failureBadRequest("OTP not provided.")
		return &f
	}

	user, _, _ := Identity(result)

	secret, err := g.encryptor.DecryptString(user.OTPSecretEnc)
	if err != nil {
		g.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to decrypt OTP secret")
		f := failureInternal("Something went wrong.")
		return &f
	}

	if !otp.Verify(secret, code, time.Now()) {
		f := failureForbidden("Incorrect OTP provided.")
		return &f
	}

	return nil
}
