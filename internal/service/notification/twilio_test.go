package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// rewriteTransport направляет запросы к Twilio на тестовый сервер.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTwilioTestClient(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)
	return NewTwilioSender("ACtest", "secret", "+33100000000", &http.Client{Transport: rewriteTransport{target: target}}, nil)
}

func TestTwilioSender_SendSMS(t *testing.T) {
	var form url.Values
	sender := newTwilioTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2010-04-01/Accounts/ACtest/Messages.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	})

	require.NoError(t, sender.SendSMS(context.Background(), "+33600000000", "NOUVELLE COMMANDE #ABC"))
	require.Equal(t, "+33600000000", form.Get("To"))
	require.Equal(t, "+33100000000", form.Get("From"))
	require.Equal(t, "NOUVELLE COMMANDE #ABC", form.Get("Body"))
}

func TestTwilioSender_LogsSidWithoutPhoneNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM456","status":"queued"}`))
	}))
	defer server.Close()
	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	sender := NewTwilioSender("ACtest", "secret", "+33100000000",
		&http.Client{Transport: rewriteTransport{target: target}}, logger.WithField("component", "twilio"))

	require.NoError(t, sender.SendSMS(context.Background(), "+33611223344", "x"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "SM456", entry.Data["sid"])
	require.NotContains(t, entry.Data, "to")
	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		require.NotContains(t, line, "+33611223344")
	}
}

func TestTwilioSender_ErrorStatus(t *testing.T) {
	sender := newTwilioTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	require.Error(t, sender.SendSMS(context.Background(), "bad", "x"))
}

func TestTwilioSender_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	sender := newTwilioTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusCreated)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sender.SendSMS(ctx, "+33600000000", "x"), context.DeadlineExceeded)
}
