package export

import (
	"io"
	"testing"

	"github.com/JonMunkholm/pgcopy"
	"github.com/JonMunkholm/pgcopy/internal/config"
)

type stubSource struct{}

func (stubSource) ReadLine() ([]byte, error) { return nil, io.EOF }

func newService() *Service {
	cfg := &config.Config{}
	return NewService(nil, cfg)
}

func TestServiceTracksStreams(t *testing.T) {
	svc := newService()

	s1, err := pgcopy.NewStream(stubSource{}, svc, "UTF8")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}
	s2, err := pgcopy.NewStream(stubSource{}, svc, "LATIN1")
	if err != nil {
		t.Fatalf("NewStream error = %v", err)
	}

	if got := svc.ActiveStreams(); got != 2 {
		t.Errorf("ActiveStreams = %d, want 2", got)
	}

	s1.Close()
	if got := svc.ActiveStreams(); got != 1 {
		t.Errorf("ActiveStreams after one close = %d, want 1", got)
	}

	// Closing twice must not disturb the other registration.
	s1.Close()
	if got := svc.ActiveStreams(); got != 1 {
		t.Errorf("ActiveStreams after repeated close = %d, want 1", got)
	}

	s2.Close()
	if got := svc.ActiveStreams(); got != 0 {
		t.Errorf("ActiveStreams after all closed = %d, want 0", got)
	}
}

func TestServiceFailedOpenNotTracked(t *testing.T) {
	svc := newService()

	if _, err := pgcopy.NewStream(stubSource{}, svc, "NO_SUCH_ENCODING"); err == nil {
		t.Fatal("NewStream error = nil, want unrecognized encoding error")
	}
	if got := svc.ActiveStreams(); got != 0 {
		t.Errorf("ActiveStreams = %d, want 0", got)
	}
}
