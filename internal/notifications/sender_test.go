package notifications

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
	"google.golang.org/api/option"
)

// fcmReply is a canned FCM v1 response for one registration token.
type fcmReply struct {
	status int
	body   string
}

func fcmError(status int, code, message, fcmCode string) fcmReply {
	return fcmReply{status: status, body: `{"error":{"code":` + strconv.Itoa(status) +
		`,"message":"` + message + `","status":"` + code +
		`","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"` + fcmCode + `"}]}}`}
}

var (
	replyUnregistered = fcmError(http.StatusNotFound, "NOT_FOUND", "Requested entity was not found.", "UNREGISTERED")
	replyBadToken     = fcmError(http.StatusBadRequest, "INVALID_ARGUMENT", "The registration token is not a valid FCM registration token", "INVALID_ARGUMENT")
	replyBadPayload   = fcmError(http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid value at 'message.webpush.notification' (icon)", "INVALID_ARGUMENT")
	replyInternal     = fcmError(http.StatusInternalServerError, "INTERNAL", "Internal error encountered.", "INTERNAL")
	replyQuota        = fcmError(http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "Quota exceeded.", "QUOTA_EXCEEDED")
)

// fcmTransport answers messages:send requests by the target token.
type fcmTransport map[string]fcmReply

func (f fcmTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	token := gjson.GetBytes(body, "message.token").String()
	reply, ok := f[token]
	if !ok {
		reply = fcmReply{status: http.StatusOK, body: `{"name":"projects/rocketpush-test/messages/1"}`}
	}
	return &http.Response{
		StatusCode: reply.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(reply.body)),
		Request:    req,
	}, nil
}

func newTestSender(t *testing.T, replies fcmTransport) *FCMSender {
	t.Helper()
	s, err := newFCMSender(context.Background(), "rocketpush-test", discardLogger(),
		option.WithHTTPClient(&http.Client{Transport: replies}))
	if err != nil {
		t.Fatalf("newFCMSender: %v", err)
	}
	return s
}

var testMessage = Message{
	Title: "Live: Bohn Jour",
	Body:  "Frühstück",
	Icon:  "https://example.test/icon.png",
	Link:  "https://example.test/live",
}

func TestFCMSender_ClassifiesErrors(t *testing.T) {
	s := newTestSender(t, fcmTransport{
		"tok-gone":    replyUnregistered,
		"tok-garbage": replyBadToken,
		"tok-busy":    replyInternal,
		"tok-quota":   replyQuota,
	})
	tokens := []string{"tok-ok", "tok-gone", "tok-garbage", "tok-busy", "tok-quota"}

	results, err := s.SendMulticast(context.Background(), tokens, testMessage)
	if err != nil {
		t.Fatalf("SendMulticast: %v", err)
	}
	if len(results) != len(tokens) {
		t.Fatalf("got %d results for %d tokens", len(results), len(tokens))
	}
	want := []ErrorKind{Delivered, Unregistered, InvalidToken, OtherFailure, OtherFailure}
	for i, k := range want {
		if results[i].Kind != k {
			t.Errorf("%s: kind = %s, want %s (err=%v)", tokens[i], results[i].Kind, k, results[i].Err)
		}
		if (k == Delivered) != (results[i].Err == nil) {
			t.Errorf("%s: err = %v", tokens[i], results[i].Err)
		}
	}
}

func TestFCMSender_InvalidArgument(t *testing.T) {
	tests := []struct {
		name    string
		replies fcmTransport
		tokens  []string
		want    []ErrorKind
	}{
		{
			name:    "payload error on a single token keeps the token",
			replies: fcmTransport{"tok-a": replyBadPayload},
			tokens:  []string{"tok-a"},
			want:    []ErrorKind{OtherFailure},
		},
		{
			name:    "bad token on a single token is removed",
			replies: fcmTransport{"tok-a": replyBadToken},
			tokens:  []string{"tok-a"},
			want:    []ErrorKind{InvalidToken},
		},
		{
			name:    "whole batch rejected blames the payload",
			replies: fcmTransport{"tok-a": replyBadToken, "tok-b": replyBadToken, "tok-c": replyBadToken},
			tokens:  []string{"tok-a", "tok-b", "tok-c"},
			want:    []ErrorKind{OtherFailure, OtherFailure, OtherFailure},
		},
		{
			name:    "partial rejection keeps per-token verdicts",
			replies: fcmTransport{"tok-a": replyBadToken, "tok-b": replyBadPayload},
			tokens:  []string{"tok-a", "tok-b", "tok-c"},
			want:    []ErrorKind{InvalidToken, OtherFailure, Delivered},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := newTestSender(t, tt.replies).SendMulticast(context.Background(), tt.tokens, testMessage)
			if err != nil {
				t.Fatalf("SendMulticast: %v", err)
			}
			for i, k := range tt.want {
				if results[i].Kind != k {
					t.Errorf("%s: kind = %s, want %s", tt.tokens[i], results[i].Kind, k)
				}
			}
		})
	}
}

func TestFCMSender_ThroughDispatcher(t *testing.T) {
	s := newTestSender(t, fcmTransport{"tok-gone": replyUnregistered, "tok-garbage": replyBadToken})
	d := NewDispatcher(s, testMessage.Icon, 0, discardLogger())

	invalid, err := d.Dispatch(context.Background(), []string{"tok-ok", "tok-gone", "tok-garbage"},
		testMessage.Title, testMessage.Body, testMessage.Link)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if strings.Join(invalid, ",") != "tok-gone,tok-garbage" {
		t.Fatalf("invalid = %v", invalid)
	}
}
