// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/cull/internal/models"
)

// MakeTracks builds n tracks with IDs prefix-0 .. prefix-(n-1) at positions 0 .. n-1.
func MakeTracks(prefix string, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Position: i,
			Name:     fmt.Sprintf("Song %s %d", prefix, i),
			Artist:   fmt.Sprintf("Artist %s", prefix),
			Artwork: models.Artwork{
				URL: fmt.Sprintf("https://i.scdn.co/image/%s-%d", prefix, i),
			},
		}
	}
	return tracks
}

// MockFetcher serves fixed pages of tracks by offset.
//
// Pages[offset/limit] is served for each request. The next FailCount calls return Err.
type MockFetcher struct {
	Pages     [][]models.Track
	Err       error
	FailCount int

	mu      sync.Mutex
	Calls   int
	Offsets []int
}

func NewMockFetcher(pages ...[]models.Track) *MockFetcher {
	return &MockFetcher{Pages: pages}
}

func (m *MockFetcher) PlaylistPage(ctx context.Context, playlistID string, offset, limit int) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Offsets = append(m.Offsets, offset)

	if m.FailCount > 0 {
		m.FailCount--
		return nil, m.Err
	}

	index := 0
	if limit > 0 {
		index = offset / limit
	}
	if index >= len(m.Pages) {
		return &models.Page{Offset: offset, Limit: limit}, nil
	}

	return &models.Page{
		Tracks: m.Pages[index],
		Offset: offset,
		Limit:  limit,
		More:   index < len(m.Pages)-1,
	}, nil
}

// MockRemover records removal calls and fails for the IDs in Fail.
type MockRemover struct {
	Fail map[string]error

	mu        sync.Mutex
	Removed   []string
	positions []int
}

func NewMockRemover(fail map[string]error) *MockRemover {
	return &MockRemover{Fail: fail}
}

func (m *MockRemover) RemoveTrack(ctx context.Context, playlistID, trackID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.Fail[trackID]; ok {
		return err
	}
	m.Removed = append(m.Removed, trackID)
	m.positions = append(m.positions, position)
	return nil
}

// Calls returns a copy of the successfully removed IDs.
func (m *MockRemover) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Removed...)
}

// Positions returns the positions sent with each successful removal.
func (m *MockRemover) Positions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.positions...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
