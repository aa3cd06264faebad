package gmail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	authdomain "fupm-backend/internal/auth/domain"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	refreshAttempts = 3
	refreshBackoff  = 500 * time.Millisecond
	// Tokens this close to expiry are refreshed before use
	refreshLeeway = 5 * time.Minute
)

// refreshingTokenSource refreshes with a bounded retry and reports every new
// token through onRefresh so the caller can persist it.
type refreshingTokenSource struct {
	mu        sync.Mutex
	ctx       context.Context
	conf      *oauth2.Config
	current   *oauth2.Token
	onRefresh authdomain.TokenUpdateFunc
	attempts  int
	backoff   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func newRefreshingTokenSource(ctx context.Context, conf *oauth2.Config, current *oauth2.Token, onRefresh authdomain.TokenUpdateFunc, logger *zap.Logger) *refreshingTokenSource {
	return &refreshingTokenSource{
		ctx:       ctx,
		conf:      conf,
		current:   current,
		onRefresh: onRefresh,
		attempts:  refreshAttempts,
		backoff:   refreshBackoff,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *refreshingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.needsRefresh() {
		return s.current, nil
	}
	if s.current.RefreshToken == "" {
		if s.current.AccessToken != "" {
			// Nothing to refresh with; let the API decide whether the token still works
			return s.current, nil
		}
		return nil, errors.New("no gmail credential available")
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		t, err := s.conf.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.current.RefreshToken}).Token()
		if err == nil {
			if t.RefreshToken == "" {
				t.RefreshToken = s.current.RefreshToken
			}
			s.current = t
			if s.onRefresh != nil {
				if err := s.onRefresh(t); err != nil {
					// The fresh token is still usable for this call
					s.logger.Warn("Failed to persist refreshed token", zap.Error(err))
				}
			}
			return t, nil
		}
		lastErr = err
		s.logger.Warn("Token refresh failed", zap.Int("attempt", attempt), zap.Error(err))

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			break
		}
		if attempt < s.attempts {
			select {
			case <-time.After(time.Duration(attempt) * s.backoff):
			case <-s.ctx.Done():
				return nil, s.ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("refresh gmail token: %w", lastErr)
}

// needsRefresh is true for a missing token, an unknown expiry, or one inside the leeway.
func (s *refreshingTokenSource) needsRefresh() bool {
	if s.current == nil || s.current.AccessToken == "" {
		return true
	}
	if s.current.Expiry.IsZero() {
		return s.current.RefreshToken != ""
	}
	return s.current.Expiry.Sub(s.now()) < refreshLeeway
}
