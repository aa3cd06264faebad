package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	user             = "me"
	maxThreadsPerRun = 50
)

// CredentialStore persists what the gateway learns about a user's mailbox.
type CredentialStore interface {
	UpdateTokens(ctx context.Context, userID string, token *oauth2.Token) error
	UpdateLabelID(ctx context.Context, userID, labelID string) error
}

type Service struct {
	config    *oauth2.Config
	labelName string
	store     CredentialStore
	cb        *gobreaker.CircuitBreaker
	logger    *zap.Logger

	// serializes label lookup so concurrent triggers create at most one label
	labelMu sync.Mutex

	// newClient builds the Gmail API client; replaced in tests
	newClient func(ctx context.Context, u *authdomain.User) (*gmail.Service, error)
}

func NewService(clientID, clientSecret, labelName string, store CredentialStore, logger *zap.Logger) *Service {
	s := &Service{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gmail.GmailReadonlyScope,
				gmail.GmailComposeScope,
				gmail.GmailSendScope,
				gmail.GmailLabelsScope,
			},
		},
		labelName: labelName,
		store:     store,
		logger:    logger,
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	s.newClient = s.gmailService
	return s
}

// gmailService creates a Gmail client for the user's stored credential.
// Refreshed tokens are written back to the user record and the store.
func (s *Service) gmailService(ctx context.Context, u *authdomain.User) (*gmail.Service, error) {
	if !u.HasMailCredential() {
		return nil, errors.New("user has no gmail credential")
	}

	token := &oauth2.Token{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		TokenType:    "Bearer",
	}
	if u.TokenExpiry != nil {
		token.Expiry = *u.TokenExpiry
	}

	src := newRefreshingTokenSource(ctx, s.config, token, s.tokenUpdateCallback(ctx, u), s.logger)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func (s *Service) tokenUpdateCallback(ctx context.Context, u *authdomain.User) authdomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		u.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			u.RefreshToken = token.RefreshToken
		}
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			u.TokenExpiry = &expiry
		}
		if s.store == nil {
			return nil
		}
		return s.store.UpdateTokens(ctx, u.ID, token)
	}
}

// EnsureLabel returns the id of the tracking label, creating it on first use.
func (s *Service) EnsureLabel(ctx context.Context, u *authdomain.User) (string, error) {
	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	if u.GmailLabelID != "" {
		return u.GmailLabelID, nil
	}

	srv, err := s.newClient(ctx, u)
	if err != nil {
		return "", err
	}

	var labelID string
	err = s.call(ctx, "ensure_label", func() error {
		resp, err := srv.Users.Labels.List(user).Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, label := range resp.Labels {
			if strings.EqualFold(label.Name, s.labelName) {
				labelID = label.Id
				return nil
			}
		}

		created, err := srv.Users.Labels.Create(user, &gmail.Label{
			Name:                  s.labelName,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		labelID = created.Id
		s.logger.Info("Created tracking label", zap.String("user_id", u.ID), zap.String("label_id", labelID))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unable to ensure label %q: %w", s.labelName, err)
	}

	u.GmailLabelID = labelID
	if s.store != nil {
		if err := s.store.UpdateLabelID(ctx, u.ID, labelID); err != nil {
			s.logger.Warn("Failed to cache label id", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return labelID, nil
}

// ListThreadsWithLabel returns up to 50 thread ids carrying the label.
func (s *Service) ListThreadsWithLabel(ctx context.Context, u *authdomain.User, labelID string) ([]string, error) {
	srv, err := s.newClient(ctx, u)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = s.call(ctx, "list_threads", func() error {
		resp, err := srv.Users.Threads.List(user).LabelIds(labelID).MaxResults(maxThreadsPerRun).Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(resp.Threads))
		for _, t := range resp.Threads {
			if t.Id != "" {
				ids = append(ids, t.Id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list threads: %w", err)
	}
	return ids, nil
}

// GetThreadDetail returns the thread's messages in order with plain-text bodies.
func (s *Service) GetThreadDetail(ctx context.Context, u *authdomain.User, threadID string) ([]requestdomain.ThreadMessage, error) {
	srv, err := s.newClient(ctx, u)
	if err != nil {
		return nil, err
	}

	var thread *gmail.Thread
	err = s.call(ctx, "get_thread", func() error {
		var err error
		thread, err = srv.Users.Threads.Get(user, threadID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get thread %s: %w", threadID, err)
	}

	messages := make([]requestdomain.ThreadMessage, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		messages = append(messages, convertMessage(msg))
	}
	return messages, nil
}

// CreateDraft stores a draft reply inside the thread and returns the draft id.
func (s *Service) CreateDraft(ctx context.Context, u *authdomain.User, out requestdomain.OutgoingMessage) (string, error) {
	srv, err := s.newClient(ctx, u)
	if err != nil {
		return "", err
	}

	raw, err := buildRawMessage(u.Email, out, time.Now())
	if err != nil {
		return "", err
	}

	var draftID string
	err = s.call(ctx, "create_draft", func() error {
		draft, err := srv.Users.Drafts.Create(user, &gmail.Draft{
			Message: &gmail.Message{
				Raw:      base64.URLEncoding.EncodeToString(raw),
				ThreadId: out.ThreadID,
			},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		draftID = draft.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unable to create draft: %w", err)
	}
	return draftID, nil
}

// SendMessage sends the reply inside the thread and returns the message id.
func (s *Service) SendMessage(ctx context.Context, u *authdomain.User, out requestdomain.OutgoingMessage) (string, error) {
	srv, err := s.newClient(ctx, u)
	if err != nil {
		return "", err
	}

	raw, err := buildRawMessage(u.Email, out, time.Now())
	if err != nil {
		return "", err
	}

	var messageID string
	err = s.call(ctx, "send_message", func() error {
		sent, err := srv.Users.Messages.Send(user, &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString(raw),
			ThreadId: out.ThreadID,
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		messageID = sent.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}
	return messageID, nil
}

// call runs fn behind the circuit breaker and records its latency.
func (s *Service) call(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := s.executeWithCircuitBreaker(operation, fn)
	metrics.RecordCollaboratorCall("gmail", operation, err, time.Since(start))
	return err
}

// executeWithCircuitBreaker lets only server-side failures count against the breaker.
func (s *Service) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}

	if err != nil {
		s.logger.Warn("Gmail call failed",
			zap.String("operation", operation),
			zap.String("breaker_state", s.cb.State().String()),
			zap.Error(err),
		)
	}
	return err
}

// nonCircuitError wraps client errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}
