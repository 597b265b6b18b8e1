package queue

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func urls(links []models.SiteLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.LinkURL
	}
	return out
}

func TestNewFrontier(t *testing.T) {
	f := NewFrontier(testLogger())
	require.NotNil(t, f)
	assert.Equal(t, 0, f.Len())

	_, ok := f.Pop()
	assert.False(t, ok, "Pop on empty frontier")
}

func TestFrontier_FIFOOrder(t *testing.T) {
	f := NewFrontier(testLogger())
	seed := models.NewSeedLink("/p")
	for _, u := range []string{"/p/c", "/p/a", "/p/b"} {
		require.True(t, f.Push(seed.Child(u)))
	}

	var got []string
	for {
		link, ok := f.Pop()
		if !ok {
			break
		}
		got = append(got, link.LinkURL)
	}
	assert.Equal(t, []string{"/p/c", "/p/a", "/p/b"}, got)
}

func TestFrontier_RejectsDuplicatePending(t *testing.T) {
	f := NewFrontier(testLogger())
	seed := models.NewSeedLink("/p")

	assert.True(t, f.Push(seed.Child("/p/a")))
	assert.False(t, f.Push(seed.Child("/p/a")))
	assert.Equal(t, 1, f.Len())
	assert.True(t, f.Contains("/p/a"))

	_, ok := f.Pop()
	require.True(t, ok)
	assert.False(t, f.Contains("/p/a"))

	// Once popped, the frontier itself no longer remembers it
	assert.True(t, f.Push(seed.Child("/p/a")))
}

func TestFrontier_Pending(t *testing.T) {
	f := NewFrontier(testLogger())
	for i := 0; i < 5; i++ {
		f.Push(models.NewSeedLink(fmt.Sprintf("/%d", i)))
	}
	f.Pop()

	assert.Equal(t, []string{"/1", "/2", "/3", "/4"}, urls(f.Pending()))
	assert.Equal(t, 4, f.Len(), "Pending must not consume")
}

func TestFrontier_Reorder(t *testing.T) {
	f := NewFrontier(testLogger())
	for _, u := range []string{"/a", "/b", "/c"} {
		f.Push(models.NewSeedLink(u))
	}

	pending := f.Pending()
	reversed := []models.SiteLink{pending[2], pending[1], pending[0]}
	require.NoError(t, f.Reorder(reversed))
	assert.Equal(t, []string{"/c", "/b", "/a"}, urls(f.Pending()))

	// New pushes still land behind the reordered set
	f.Push(models.NewSeedLink("/d"))
	assert.Equal(t, []string{"/c", "/b", "/a", "/d"}, urls(f.Pending()))

	link, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "/c", link.LinkURL)
}

func TestFrontier_ReorderRejectsNonPermutation(t *testing.T) {
	f := NewFrontier(testLogger())
	for _, u := range []string{"/a", "/b", "/c"} {
		f.Push(models.NewSeedLink(u))
	}

	tests := []struct {
		name    string
		ordered []string
	}{
		{"Missing", []string{"/a", "/b"}},
		{"Extra", []string{"/a", "/b", "/c", "/d"}},
		{"Foreign", []string{"/a", "/b", "/x"}},
		{"Duplicate", []string{"/a", "/a", "/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := make([]models.SiteLink, len(tt.ordered))
			for i, u := range tt.ordered {
				links[i] = models.NewSeedLink(u)
			}
			assert.ErrorIs(t, f.Reorder(links), ErrNotPermutation)
			assert.Equal(t, []string{"/a", "/b", "/c"}, urls(f.Pending()))
		})
	}
}

func TestFrontier_ReorderKeepsQueuedValues(t *testing.T) {
	f := NewFrontier(testLogger())
	child := models.NewSeedLink("/p").Child("/p/a")
	f.Push(child)

	// A sorter returning stripped copies must not lose depth/path
	require.NoError(t, f.Reorder([]models.SiteLink{{LinkURL: "/p/a"}}))
	link, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, link.LinkDepth)
	assert.Equal(t, []string{"/p"}, link.Ancestry())
}

func TestFrontier_Drain(t *testing.T) {
	f := NewFrontier(testLogger())
	for _, u := range []string{"/a", "/b"} {
		f.Push(models.NewSeedLink(u))
	}

	assert.Equal(t, []string{"/a", "/b"}, urls(f.Drain()))
	assert.Equal(t, 0, f.Len())
	assert.False(t, f.Contains("/a"))
	assert.True(t, f.Push(models.NewSeedLink("/a")))
}
