package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type fakeStore struct {
	labelID string
	tokens  []*oauth2.Token
}

func (f *fakeStore) UpdateTokens(_ context.Context, _ string, token *oauth2.Token) error {
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeStore) UpdateLabelID(_ context.Context, _ string, labelID string) error {
	f.labelID = labelID
	return nil
}

// newTestService points the gateway at a fake Gmail API.
func newTestService(t *testing.T, handler http.Handler) (*Service, *fakeStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := &fakeStore{}
	s := NewService("id", "secret", "FUPM.ai", store, zap.NewNop())
	s.newClient = func(ctx context.Context, _ *authdomain.User) (*gmail.Service, error) {
		return gmail.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	}
	return s, store
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestEnsureLabelFindsExistingLabel(t *testing.T) {
	var created int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&created, 1)
		}
		writeJSON(w, map[string]interface{}{"labels": []map[string]string{
			{"id": "INBOX", "name": "INBOX"},
			{"id": "Label_7", "name": "fupm.ai"},
		}})
	})
	s, store := newTestService(t, mux)

	u := &authdomain.User{ID: "u1", AccessToken: "tok"}
	id, err := s.EnsureLabel(context.Background(), u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "Label_7" || u.GmailLabelID != "Label_7" || store.labelID != "Label_7" {
		t.Fatalf("expected Label_7 cached everywhere, got id=%q user=%q store=%q", id, u.GmailLabelID, store.labelID)
	}
	if created != 0 {
		t.Fatalf("expected no label creation")
	}

	// Cached id short-circuits the API
	if id2, _ := s.EnsureLabel(context.Background(), u); id2 != "Label_7" {
		t.Fatalf("expected cached id, got %q", id2)
	}
}

func TestEnsureLabelCreatesMissingLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var label gmail.Label
			_ = json.NewDecoder(r.Body).Decode(&label)
			if label.Name != "FUPM.ai" || label.LabelListVisibility != "labelShow" || label.MessageListVisibility != "show" {
				t.Errorf("unexpected label payload %+v", label)
			}
			writeJSON(w, map[string]string{"id": "Label_new", "name": label.Name})
			return
		}
		writeJSON(w, map[string]interface{}{"labels": []map[string]string{}})
	})
	s, _ := newTestService(t, mux)

	id, err := s.EnsureLabel(context.Background(), &authdomain.User{ID: "u1", AccessToken: "tok"})
	if err != nil || id != "Label_new" {
		t.Fatalf("expected created label, got id=%q err=%v", id, err)
	}
}

func TestListThreadsWithLabel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("labelIds"); got != "Label_7" {
			t.Errorf("expected labelIds=Label_7, got %q", got)
		}
		if got := r.URL.Query().Get("maxResults"); got != "50" {
			t.Errorf("expected maxResults=50, got %q", got)
		}
		writeJSON(w, map[string]interface{}{"threads": []map[string]string{{"id": "t1"}, {"id": ""}, {"id": "t2"}}})
	})
	s, _ := newTestService(t, mux)

	ids, err := s.ListThreadsWithLabel(context.Background(), &authdomain.User{AccessToken: "tok"}, "Label_7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "t1,t2" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestGetThreadDetailPrefersPlainText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads/t1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id": "t1",
			"messages": []interface{}{
				map[string]interface{}{
					"id": "m1",
					"payload": map[string]interface{}{
						"mimeType": "multipart/alternative",
						"headers": []map[string]string{
							{"name": "From", "value": "Me <me@example.com>"},
							{"name": "To", "value": "\"Acme Billing\" <billing@acme.test>"},
							{"name": "Subject", "value": "Invoice #42"},
							{"name": "Date", "value": "Mon, 02 Jan 2006 15:04:05 -0700"},
						},
						"parts": []interface{}{
							map[string]interface{}{"mimeType": "text/html", "body": map[string]string{"data": b64("<p>Hi <b>there</b></p>")}},
							map[string]interface{}{"mimeType": "text/plain", "body": map[string]string{"data": b64("Hi there, invoice attached.")}},
						},
					},
				},
				map[string]interface{}{
					"id": "m2",
					"payload": map[string]interface{}{
						"mimeType": "text/html",
						"body":     map[string]string{"data": b64("<div>Paid &amp; done</div>")},
					},
				},
			},
		})
	})
	s, _ := newTestService(t, mux)

	msgs, err := s.GetThreadDetail(context.Background(), &authdomain.User{AccessToken: "tok"}, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "Hi there, invoice attached." || msgs[0].Subject != "Invoice #42" || msgs[0].To != "\"Acme Billing\" <billing@acme.test>" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Body != "Paid & done" {
		t.Fatalf("expected stripped html body, got %q", msgs[1].Body)
	}
}

func TestCreateDraftAndSendMessage(t *testing.T) {
	var draftRaw, sendRaw, draftThread, sendThread string
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/drafts", func(w http.ResponseWriter, r *http.Request) {
		var d gmail.Draft
		_ = json.NewDecoder(r.Body).Decode(&d)
		draftRaw, draftThread = d.Message.Raw, d.Message.ThreadId
		writeJSON(w, map[string]string{"id": "draft-1"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var m gmail.Message
		_ = json.NewDecoder(r.Body).Decode(&m)
		sendRaw, sendThread = m.Raw, m.ThreadId
		writeJSON(w, map[string]string{"id": "msg-1", "threadId": m.ThreadId})
	})
	s, _ := newTestService(t, mux)

	u := &authdomain.User{Email: "me@example.com", AccessToken: "tok"}
	out := requestdomain.OutgoingMessage{ThreadID: "t1", To: "billing@acme.test", ToName: "Acme", Subject: "Re: Invoice #42", Body: "Checking in."}

	draftID, err := s.CreateDraft(context.Background(), u, out)
	if err != nil || draftID != "draft-1" {
		t.Fatalf("unexpected draft id=%q err=%v", draftID, err)
	}
	msgID, err := s.SendMessage(context.Background(), u, out)
	if err != nil || msgID != "msg-1" {
		t.Fatalf("unexpected message id=%q err=%v", msgID, err)
	}
	if draftThread != "t1" || sendThread != "t1" {
		t.Fatalf("expected both calls threaded under t1, got %q and %q", draftThread, sendThread)
	}
	for _, raw := range []string{draftRaw, sendRaw} {
		decoded, err := base64.URLEncoding.DecodeString(raw)
		if err != nil {
			t.Fatalf("raw is not base64url: %v", err)
		}
		if !strings.Contains(string(decoded), "Subject: Re: Invoice #42") {
			t.Fatalf("raw message missing subject:\n%s", decoded)
		}
	}
}

func TestBuildRawMessage(t *testing.T) {
	raw, err := buildRawMessage("me@example.com", requestdomain.OutgoingMessage{
		To:      "billing@acme.test",
		ToName:  "Acme Billing",
		Subject: "Re: Invoice",
		Body:    "Just following up.",
	}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(raw)
	for _, want := range []string{
		"To: \"Acme Billing\" <billing@acme.test>",
		"From: <me@example.com>",
		"Subject: Re: Invoice",
		"Content-Type: text/plain; charset=utf-8",
		"Just following up.",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("raw message missing %q:\n%s", want, s)
		}
	}
}

func TestStripHTML(t *testing.T) {
	in := "<html><style>p{color:red}</style><p>Hello&nbsp;there</p><br><div>Amount: &lt;$50&gt;</div></html>"
	want := "Hello there\n\nAmount: <$50>"
	if got := stripHTML(in); got != want {
		t.Fatalf("stripHTML()=%q, want %q", got, want)
	}
}

func TestDecodeBodyAcceptsUnpaddedData(t *testing.T) {
	data := base64.RawURLEncoding.EncodeToString([]byte("ab"))
	if got := decodeBody(data); got != "ab" {
		t.Fatalf("expected ab, got %q", got)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	s := NewService("id", "secret", "FUPM.ai", nil, zap.NewNop())
	notFound := &googleapi.Error{Code: 404}

	for i := 0; i < 20; i++ {
		err := s.executeWithCircuitBreaker("get_thread", func() error { return notFound })
		if !errors.Is(err, notFound) {
			t.Fatalf("expected original error back, got %v", err)
		}
	}
	if state := s.cb.State().String(); state != "closed" {
		t.Fatalf("expected closed breaker after client errors, got %s", state)
	}

	for i := 0; i < 7; i++ {
		_ = s.executeWithCircuitBreaker("get_thread", func() error { return &googleapi.Error{Code: 503} })
	}
	if state := s.cb.State().String(); state != "open" {
		t.Fatalf("expected open breaker after server errors, got %s", state)
	}
}

func TestTokenSourceRetriesAndPersists(t *testing.T) {
	var calls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	conf := &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	var persisted *oauth2.Token
	src := newRefreshingTokenSource(context.Background(), conf,
		&oauth2.Token{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(time.Minute)},
		func(tok *oauth2.Token) error { persisted = tok; return nil },
		zap.NewNop(),
	)
	src.backoff = time.Millisecond

	tok, err := src.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "fresh" || tok.RefreshToken != "refresh" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if persisted == nil || persisted.AccessToken != "fresh" {
		t.Fatalf("expected refreshed token to be persisted")
	}

	// A token well inside its lifetime is reused
	if _, err := src.Token(); err != nil || calls != 3 {
		t.Fatalf("expected cached token, calls=%d err=%v", calls, err)
	}
}

func TestTokenSourceGivesUpAfterBoundedAttempts(t *testing.T) {
	var calls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer tokenSrv.Close()

	conf := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}}
	src := newRefreshingTokenSource(context.Background(), conf, &oauth2.Token{RefreshToken: "refresh"}, nil, zap.NewNop())
	src.backoff = time.Millisecond

	if _, err := src.Token(); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if calls != refreshAttempts {
		t.Fatalf("expected %d attempts, got %d", refreshAttempts, calls)
	}
}
