package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head>
<script>{"images":{"orig":{"url":"https://i.pinimg.com/originals/aa/bb/cc/aabbcc001122.jpg"}}}</script>
</head><body>
<img src="https://i.pinimg.com/236x/11/22/33/112233445566.png">
<img src="https://i.pinimg.com/75x75_RS/avatar/user123456789.jpg">
<img src="https://i.pinimg.com/logo/brand-mark-large-001.png">
<img srcset="https://i.pinimg.com/474x/44/55/66/445566778899.webp 1x, https://i.pinimg.com/736x/44/55/66/445566778899.webp 2x">
<img src="https://i.pinimg.com/x.jpg">
<img src="https://example.com/not-a-pin/image00000000.jpg">
<p>https://I.PINIMG.COM/originals/aa/bb/cc/aabbcc001122.jpg</p>
</body></html>`

func TestExtractFiltersAndDedupes(t *testing.T) {
	got := Extract([]byte(page), 50)
	assert.Equal(t, []string{
		"https://i.pinimg.com/originals/aa/bb/cc/aabbcc001122.jpg",
		"https://i.pinimg.com/236x/11/22/33/112233445566.png",
		"https://i.pinimg.com/474x/44/55/66/445566778899.webp",
		"https://i.pinimg.com/736x/44/55/66/445566778899.webp",
	}, got)
}

func TestExtractCapsAtMax(t *testing.T) {
	got := Extract([]byte(page), 2)
	assert.Len(t, got, 2)
}

func TestExtractTrimsEscapedQuotes(t *testing.T) {
	body := []byte(`{"u":"https://i.pinimg.com/originals/12/34/56/123456abcdef.jpg\"}`)
	got := Extract(body, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "https://i.pinimg.com/originals/12/34/56/123456abcdef.jpg", got[0])
}

func TestFetchFallbackImages(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/pins/" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	s := New(Options{Host: srv.URL, Query: "landscape photography"})
	got := s.FetchFallbackImages(context.Background(), 3)
	assert.Len(t, got, 3)
	assert.Equal(t, "landscape photography", gotQuery)
	assert.Equal(t, browserAgent, gotAgent)
}

func TestFetchFallbackImagesFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := New(Options{Host: srv.URL, Query: "q"})
	got := s.FetchFallbackImages(context.Background(), 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	unreachable := New(Options{Host: "http://127.0.0.1:1", Query: "q"})
	assert.Empty(t, unreachable.FetchFallbackImages(context.Background(), 10))
}
