package notify

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
)

type stubChannel struct {
	name string
	err  error
	mu   sync.Mutex
	msgs []Message
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *stubChannel) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestRender_SampleReceived(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	msg, err := Render(SampleReceived, "ana@lab.test", Data{
		"name":             "Ana",
		"qr_code":          "QR-2026-000003",
		"requirement_code": "REQ-2026-000001",
		"received_at":      at,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "Sample QR-2026-000003 received" {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"Hello Ana", "REQ-2026-000001", "2026-04-02 09:30"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q: %s", want, msg.Body)
		}
	}
	if msg.Color != ColorInfo {
		t.Errorf("color = %q", msg.Color)
	}
	if len(msg.Fields) != 2 {
		t.Errorf("fields = %+v, want qr_code and requirement_code", msg.Fields)
	}
}

func TestRender_StorageExpirationListsItems(t *testing.T) {
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	msg, err := Render(StorageExpiration, "ana@lab.test", Data{
		"name": "Ana",
		"days": 7,
		"items": []map[string]interface{}{
			{"qr_code": "QR-2026-000001", "location": "Main", "shelf": "A-01", "box": "B1", "expires_at": &exp},
			{"qr_code": "QR-2026-000002", "location": "Main", "shelf": "A-02", "box": "", "expires_at": &exp},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "2 stored sample(s) expire within 7 days" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "QR-2026-000001 at Main / A-01 / B1") {
		t.Errorf("body = %s", msg.Body)
	}
	if !strings.Contains(msg.Body, "QR-2026-000002 at Main / A-02, expires 2026-05-01") {
		t.Errorf("body = %s", msg.Body)
	}
}

func TestRender_UnknownKind(t *testing.T) {
	if _, err := Render(Kind("bogus"), "x", nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDispatcher_FansOutAndJoinsErrors(t *testing.T) {
	ok := &stubChannel{name: "ok"}
	bad := &stubChannel{name: "bad", err: errors.New("boom")}
	d, err := NewDispatcher(DispatcherOpts{Channels: []Channel{ok, bad}})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	err = d.Notify(context.Background(), Custom, "x@lab.test", Data{"subject": "hi", "body": "there"})
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("err = %v, want bad: boom", err)
	}
	if ok.count() != 1 || bad.count() != 1 {
		t.Errorf("sends = %d/%d, want 1/1", ok.count(), bad.count())
	}
}

func TestDispatcher_AsyncSwallowsChannelErrors(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("smtp down")}
	d, _ := NewDispatcher(DispatcherOpts{Channels: []Channel{bad}, Async: true})

	if err := d.Notify(context.Background(), Custom, "x@lab.test", Data{"subject": "s", "body": "b"}); err != nil {
		t.Fatalf("async Notify returned %v", err)
	}
	d.Wait()
	if bad.count() != 1 {
		t.Errorf("sends = %d, want 1", bad.count())
	}
}

func TestDispatcher_AsyncSurvivesCallerCancel(t *testing.T) {
	ch := &stubChannel{name: "ok"}
	d, _ := NewDispatcher(DispatcherOpts{Channels: []Channel{ch}, Async: true})

	ctx, cancel := context.WithCancel(context.Background())
	_ = d.Notify(ctx, Custom, "x@lab.test", Data{"subject": "s", "body": "b"})
	cancel()
	d.Wait()
	if ch.count() != 1 {
		t.Errorf("sends = %d, want 1", ch.count())
	}
}

func TestNewDispatcher_RequiresChannel(t *testing.T) {
	if _, err := NewDispatcher(DispatcherOpts{}); err == nil {
		t.Error("expected error without channels")
	}
}

func TestDeliver_SwallowsFailure(t *testing.T) {
	rec := &Recorder{Err: errors.New("down")}
	Deliver(context.Background(), rec, nil, SampleReceived, "a@lab.test", Data{})
	if rec.Count(SampleReceived) != 1 {
		t.Errorf("count = %d, want 1", rec.Count(SampleReceived))
	}
	// nil notifier is a no-op
	Deliver(context.Background(), nil, nil, SampleReceived, "a@lab.test", Data{})
}

func TestSMTPChannel_BuildsMail(t *testing.T) {
	ch, err := NewSMTPChannel(SMTPOpts{Host: "mail.lab.test", From: "lims@lab.test", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("NewSMTPChannel: %v", err)
	}
	var got *mail.Msg
	ch.send = func(ctx context.Context, m *mail.Msg) error {
		got = m
		return nil
	}

	err = ch.Send(context.Background(), Message{To: "ana@lab.test", Subject: "Hi", Body: "line1\nline2"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got == nil {
		t.Fatal("no message handed to the transport")
	}
	rcpts, err := got.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "ana@lab.test" {
		t.Errorf("recipients = %v (%v), want [ana@lab.test]", rcpts, err)
	}
	if subj := got.GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != "Hi" {
		t.Errorf("subject = %v, want [Hi]", subj)
	}
	var buf bytes.Buffer
	if _, err := got.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"lims@lab.test", "line1", "line2", "text/plain"} {
		if !strings.Contains(raw, want) {
			t.Errorf("mail missing %q:\n%s", want, raw)
		}
	}
	if ch.opts.Port != 587 {
		t.Errorf("Port = %d, want 587 (default)", ch.opts.Port)
	}
}

func TestSMTPChannel_RejectsBadAddress(t *testing.T) {
	ch, _ := NewSMTPChannel(SMTPOpts{Host: "h", From: "not an address"})
	ch.send = func(ctx context.Context, m *mail.Msg) error {
		t.Error("transport called for an unbuildable message")
		return nil
	}
	if err := ch.Send(context.Background(), Message{To: "ana@lab.test"}); err == nil {
		t.Error("expected error for malformed from address")
	}
}

func TestSMTPChannel_StalledServerHonoursDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		// Accept and never send the SMTP greeting.
		var held []net.Conn
		defer func() {
			for _, c := range held {
				c.Close()
			}
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()

	ch, err := NewSMTPChannel(SMTPOpts{
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
		From: "lims@lab.test",
	})
	if err != nil {
		t.Fatalf("NewSMTPChannel: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = ch.Send(ctx, Message{To: "ana@lab.test", Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected error from a server that never greets")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send returned after %v, want it bounded by the 200ms deadline", elapsed)
	}
}

// blockingChannel holds every send until its context ends.
type blockingChannel struct{}

func (blockingChannel) Name() string { return "blocking" }

func (blockingChannel) Send(ctx context.Context, msg Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_SyncSendBoundedByTimeout(t *testing.T) {
	d, _ := NewDispatcher(DispatcherOpts{Channels: []Channel{blockingChannel{}}, Timeout: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		done <- d.Notify(context.Background(), Custom, "x@lab.test", Data{"subject": "s", "body": "b"})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("synchronous Notify not bounded by the dispatcher timeout")
	}
}

func TestDispatcher_SyncReportsFailuresInAsyncMode(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("smtp down")}
	d, _ := NewDispatcher(DispatcherOpts{Channels: []Channel{bad}, Async: true})

	err := d.Sync().Notify(context.Background(), Custom, "x@lab.test", Data{"subject": "s", "body": "b"})
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Errorf("err = %v, want the channel failure", err)
	}
	if bad.count() != 1 {
		t.Errorf("sends = %d, want 1 before Notify returned", bad.count())
	}
}

func TestSMTPChannel_RequiresRecipient(t *testing.T) {
	ch, _ := NewSMTPChannel(SMTPOpts{Host: "h", From: "f@x"})
	if err := ch.Send(context.Background(), Message{}); err == nil {
		t.Error("expected error without recipient")
	}
}
