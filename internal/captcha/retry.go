package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fulfill/internal/logging"
	"fulfill/internal/retry"
	"fulfill/internal/services"
)

const (
	DefaultExpectedLength = 4
	DefaultMaxAttempts    = 3
)

// ImageSource returns a fresh captcha image on every call.
type ImageSource func(ctx context.Context) ([]byte, error)

// RecognizeWithRetry pulls an image from source and recognizes it until the
// text has expectedLength characters. It makes at most maxAttempts recognizer
// calls and otherwise fails with an error tagged services.ErrExhausted.
// Configuration errors end the loop at once.
func RecognizeWithRetry(ctx context.Context, r Recognizer, source ImageSource, expectedLength, maxAttempts int, logger *slog.Logger) (string, error) {
	if r == nil || source == nil {
		return "", services.Wrap(services.ErrConfiguration, "captcha", "recognize", "recognizer and image source are required", nil)
	}
	if expectedLength <= 0 {
		expectedLength = DefaultExpectedLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	policy := retry.Policy{MaxAttempts: maxAttempts}
	text, _, err := retry.Do(ctx, policy, "captcha recognize", func(ctx context.Context, attempt int) (string, error) {
		image, err := source(ctx)
		if err != nil {
			logger.Warn("captcha image fetch failed",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.Error(err),
			)
			return "", err
		}
		text, err := r.Recognize(ctx, image)
		if err != nil {
			if errors.Is(err, services.ErrConfiguration) {
				return "", retry.Permanent(err)
			}
			logger.Warn("captcha recognition failed",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.Error(err),
			)
			return "", err
		}
		if len(text) != expectedLength {
			logger.Warn("captcha length mismatch",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.String("text", text),
				logging.Int("expected_length", expectedLength),
			)
			return "", fmt.Errorf("recognized %q has length %d, want %d", text, len(text), expectedLength)
		}
		return text, nil
	})
	return text, err
}
