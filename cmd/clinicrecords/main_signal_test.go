//go:build unix

package main

import (
	"bytes"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"
)

// signalReader raises sig on its first read and waits for delivery before
// handing out input.
type signalReader struct {
	t      *testing.T
	sig    syscall.Signal
	sent   bool
	occurs chan os.Signal
	r      io.Reader
}

func (s *signalReader) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		if err := syscall.Kill(os.Getpid(), s.sig); err != nil {
			s.t.Errorf("kill: %v", err)
		}
		select {
		case <-s.occurs:
		case <-time.After(5 * time.Second):
			s.t.Errorf("signal %v never delivered", s.sig)
		}
		// let the command context observe the signal
		time.Sleep(50 * time.Millisecond)
	}
	return s.r.Read(p)
}

func TestSIGTERMCancelsCommand(t *testing.T) {
	withWorkspace(t)
	occurs := make(chan os.Signal, 1)
	signal.Notify(occurs, syscall.SIGTERM)
	defer signal.Stop(occurs)

	in := &signalReader{t: t, sig: syscall.SIGTERM, occurs: occurs, r: strings.NewReader("1\n5\nEve\n40\nFlu\n6\n")}
	var out, errOut bytes.Buffer
	code := execute([]string{"console"}, in, &out, &errOut)
	if code != 1 || !strings.Contains(errOut.String(), "context canceled") {
		t.Fatalf("expected cancelled command, got exit %d: %s", code, errOut.String())
	}
	if strings.Contains(out.String(), "Record added successfully.") {
		t.Fatalf("record added after SIGTERM:\n%s", out.String())
	}
}
