package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/albapepper/rocketpush/internal/store"
)

func newTestDispatcher(gw Gateway) *Dispatcher {
	return NewDispatcher(gw, "https://example.test/icon.png", time.Second, discardLogger())
}

func TestDispatch_EmptyIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	invalid, err := newTestDispatcher(gw).Dispatch(context.Background(), nil, "t", "b", "l")
	if err != nil || len(invalid) != 0 {
		t.Fatalf("Dispatch(nil) = %v, %v", invalid, err)
	}
	if len(gw.sent()) != 0 {
		t.Fatalf("gateway called %d times", len(gw.sent()))
	}
}

func TestDispatch_MessageAndInvalidTokens(t *testing.T) {
	gw := &fakeGateway{reject: map[string]ErrorKind{
		"tok-2": Unregistered,
		"tok-3": InvalidToken,
		"tok-4": OtherFailure,
	}}
	invalid, err := newTestDispatcher(gw).Dispatch(context.Background(),
		[]string{"tok-1", "tok-2", "tok-3", "tok-4"}, "Live: Bohn Jour", "Frühstück", "https://example.test/live")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if fmt.Sprint(invalid) != "[tok-2 tok-3]" {
		t.Fatalf("invalid = %v", invalid)
	}

	calls := gw.sent()
	if len(calls) != 1 {
		t.Fatalf("expected 1 multicast, got %d", len(calls))
	}
	want := Message{Title: "Live: Bohn Jour", Body: "Frühstück", Icon: "https://example.test/icon.png", Link: "https://example.test/live"}
	if calls[0].Msg != want {
		t.Fatalf("message = %+v, want %+v", calls[0].Msg, want)
	}
}

func TestDispatch_ChunksAtMulticastLimit(t *testing.T) {
	tokens := make([]string, 2*multicastLimit+1)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
	}
	gw := &fakeGateway{reject: map[string]ErrorKind{tokens[len(tokens)-1]: Unregistered}}

	invalid, err := newTestDispatcher(gw).Dispatch(context.Background(), tokens, "t", "b", "l")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	calls := gw.sent()
	if len(calls) != 3 {
		t.Fatalf("expected 3 multicasts, got %d", len(calls))
	}
	for i, want := range []int{multicastLimit, multicastLimit, 1} {
		if len(calls[i].Tokens) != want {
			t.Errorf("batch %d size = %d, want %d", i, len(calls[i].Tokens), want)
		}
	}
	if len(invalid) != 1 || invalid[0] != tokens[len(tokens)-1] {
		t.Fatalf("invalid = %v", invalid)
	}
}

func TestDispatch_GatewayErrorIsReturned(t *testing.T) {
	gw := &fakeGateway{failWith: errBoom}
	invalid, err := newTestDispatcher(gw).Dispatch(context.Background(), []string{"a", "b"}, "t", "b", "l")
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if len(invalid) != 0 {
		t.Fatalf("invalid = %v", invalid)
	}
}

func TestFindOwners(t *testing.T) {
	stored := []store.UserToken{
		{UserID: "u1", TokenID: "t1", Token: "bad-1"},
		{UserID: "u1", TokenID: "t2", Token: "bad-2"},
		{UserID: "u2", TokenID: "t1", Token: "good"},
		{UserID: "u3", TokenID: "t9", Token: "bad-3"},
	}

	owners := FindOwners([]string{"bad-1", "bad-2", "bad-3", "unknown"}, stored)
	want := map[string]string{"u1": "t2", "u3": "t9"}
	if fmt.Sprint(owners) != fmt.Sprint(want) {
		t.Fatalf("owners = %v, want %v", owners, want)
	}

	if got := FindOwners(nil, stored); len(got) != 0 {
		t.Fatalf("FindOwners(nil) = %v", got)
	}
}
