package iox

import (
	"io"
	"strings"
	"testing"
)

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestDiscardClose(t *testing.T) {
	c := &trackingCloser{Reader: strings.NewReader("")}
	DiscardClose(c)
	if !c.closed {
		t.Error("DiscardClose did not close")
	}
}

func TestDrainClose(t *testing.T) {
	r := strings.NewReader("leftover response body")
	c := &trackingCloser{Reader: r}
	DrainClose(c)
	if !c.closed {
		t.Error("DrainClose did not close")
	}
	if r.Len() != 0 {
		t.Errorf("DrainClose left %d bytes unread", r.Len())
	}
}
