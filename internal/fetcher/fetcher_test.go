package fetcher

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"inbox-triage/internal/config"
)

func TestReadBodyPrefersPlainText(t *testing.T) {
	raw := "Subject: Refill\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>Please refill</p>\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Please refill my prescription\r\n" +
		"--XYZ--\r\n"

	body, err := readBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Please refill my prescription", body)
}

func TestReadBodyFallsBackToHTML(t *testing.T) {
	raw := "Content-Type: text/html\r\n\r\n<div>Call me &amp; <b>soon</b></div>"
	body, err := readBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Call me & soon", body)
}

func TestNewRejectsUnconfiguredSource(t *testing.T) {
	_, err := New(context.Background(), config.MailboxConfig{})
	assert.Error(t, err)

	_, err = New(context.Background(), config.MailboxConfig{Source: "imap"})
	assert.Error(t, err)
}

func TestIMAPSourceFetch(t *testing.T) {
	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	defer srv.Close()

	src, err := DialIMAP(l.Addr().String(), false, "username", "password", "")
	require.NoError(t, err)
	defer src.Close()

	msgs, err := src.Fetch(context.Background(), time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Contains(t, m.MessageID, "0000000@localhost")
	assert.Equal(t, "A little message, just for you", m.Subject)
	assert.Contains(t, m.Message, "Hi there")
	assert.Equal(t, 2016, m.Datetime.Year())
}

func TestIMAPSourceBadLogin(t *testing.T) {
	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	defer srv.Close()

	_, err = DialIMAP(l.Addr().String(), false, "username", "wrong", "")
	assert.Error(t, err)
}

func TestGmailSourceFetch(t *testing.T) {
	plain := base64.URLEncoding.EncodeToString([]byte("Please refill my lisinopril"))
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("q"), "after:"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"g1","threadId":"t1"},{"id":"g2","threadId":"t2"}],"resultSizeEstimate":2}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/g1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "g1",
			"internalDate": "1714550400000",
			"payload": {
				"mimeType": "multipart/alternative",
				"headers": [{"name": "Subject", "value": "Refill"}],
				"parts": [{"mimeType": "text/plain", "body": {"data": "` + plain + `"}}]
			}
		}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/g2", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	src, err := NewGmailSourceWithOptions(context.Background(), "",
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)

	msgs, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "g1", msgs[0].MessageID)
	assert.Equal(t, "Refill", msgs[0].Subject)
	assert.Equal(t, "Please refill my lisinopril", msgs[0].Message)
	assert.Equal(t, time.UnixMilli(1714550400000).UTC(), msgs[0].Datetime)
	assert.NoError(t, src.Close())
}

func TestOAuthConfigIsReadOnly(t *testing.T) {
	cfg := OAuthConfig("id", "secret", "http://localhost/cb")
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.readonly"}, cfg.Scopes)
	assert.Contains(t, cfg.AuthCodeURL("s"), "client_id=id")
}
