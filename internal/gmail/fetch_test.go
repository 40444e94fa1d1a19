package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const plainRaw = "From: \"Jane Doe\" <Jane@Example.com>\r\n" +
	"To: support@shop.test\r\n" +
	"Subject: Where is my order?\r\n" +
	"Date: Tue, 02 Jan 2024 15:04:05 +0000\r\n" +
	"Message-ID: <abc@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Order 42 has not arrived.\r\n"

const htmlRaw = "From: bob@example.com\r\n" +
	"Subject: Refund\r\n" +
	"Date: Mon, 01 Jan 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>I want a refund &amp; an apology</p><br>Thanks\r\n"

const alternativeRaw = "From: carol@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<b>html body</b>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--XYZ--\r\n"

func TestParseRaw(t *testing.T) {
	in, err := parseRaw([]byte(plainRaw))
	require.NoError(t, err)
	assert.Equal(t, `"Jane Doe" <Jane@Example.com>`, in.From)
	assert.Equal(t, "Where is my order?", in.Subject)
	assert.Equal(t, "abc@example.com", in.MessageID)
	assert.Equal(t, "Order 42 has not arrived.", in.Body)
	assert.Equal(t, 2024, in.Date.Year())

	in, err = parseRaw([]byte(htmlRaw))
	require.NoError(t, err)
	assert.Equal(t, "I want a refund & an apology\n\nThanks", in.Body)

	in, err = parseRaw([]byte(alternativeRaw))
	require.NoError(t, err)
	assert.Equal(t, "plain body", in.Body)
}

func TestCodeFromInput(t *testing.T) {
	code, err := codeFromInput("  4/abc ")
	require.NoError(t, err)
	assert.Equal(t, "4/abc", code)

	code, err = codeFromInput("http://127.0.0.1:5555/?state=x&code=4%2Fxyz")
	require.NoError(t, err)
	assert.Equal(t, "4/xyz", code)

	_, err = codeFromInput("http://127.0.0.1:5555/?state=x")
	assert.Error(t, err)
	_, err = codeFromInput("")
	assert.Error(t, err)
}

// fakeGmail serves the few Gmail endpoints used here.
type fakeGmail struct {
	mu       sync.Mutex
	raw      map[string]string
	modified []string
	sent     []gmailv1.Message
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
		switch {
		case r.Method == http.MethodGet && path == "messages":
			assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
			var list gmailv1.ListMessagesResponse
			for id := range f.raw {
				list.Messages = append(list.Messages, &gmailv1.Message{Id: id})
			}
			json.NewEncoder(w).Encode(list)
		case r.Method == http.MethodGet && strings.HasPrefix(path, "messages/"):
			id := strings.TrimPrefix(path, "messages/")
			raw, ok := f.raw[id]
			if !ok {
				http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(gmailv1.Message{
				Id: id, ThreadId: "t-" + id,
				Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
			})
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/modify"):
			f.modified = append(f.modified, strings.TrimSuffix(strings.TrimPrefix(path, "messages/"), "/modify"))
			json.NewEncoder(w).Encode(gmailv1.Message{})
		case r.Method == http.MethodPost && path == "messages/send":
			var m gmailv1.Message
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &m))
			f.sent = append(f.sent, m)
			json.NewEncoder(w).Encode(gmailv1.Message{Id: "sent-1", ThreadId: m.ThreadId})
		default:
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
		}
	})
}

func testService(t *testing.T, f *fakeGmail) *gmailv1.Service {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	svc, err := gmailv1.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return svc
}

func TestFetchUnreadAndMarkProcessed(t *testing.T) {
	f := &fakeGmail{raw: map[string]string{"g1": plainRaw, "g2": htmlRaw}}
	svc := testService(t, f)
	ctx := context.Background()

	msgs, err := FetchUnread(ctx, svc, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// htmlRaw is dated a day earlier.
	assert.Equal(t, "g2", msgs[0].ID)
	assert.Equal(t, "g1", msgs[1].ID)
	assert.Equal(t, "t-g1", msgs[1].ThreadID)

	require.NoError(t, MarkProcessed(ctx, svc, []string{"g1", "g2"}))
	assert.ElementsMatch(t, []string{"g1", "g2"}, f.modified)
}

func TestSendRaw(t *testing.T) {
	f := &fakeGmail{}
	svc := testService(t, f)

	sent, err := SendRaw(context.Background(), svc, []byte("Subject: hi\r\n\r\nbody"), "thread-9")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", sent.Id)
	require.Len(t, f.sent, 1)
	assert.Equal(t, "thread-9", f.sent[0].ThreadId)
	raw, err := decodeRaw(f.sent[0].Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "body")
}
