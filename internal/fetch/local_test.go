package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFetcher_CleanHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><head><title>Acme Corp</title></head>
<body><nav>Menu</nav><h1>Welcome</h1><p>We build great products.</p>
<footer>Copyright 2024</footer></body></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Source)
	assert.Equal(t, "Acme Corp", page.Title)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.Text, "Welcome")
	assert.Contains(t, page.Text, "great products")
	// Nav and footer should be stripped.
	assert.NotContains(t, page.Text, "Menu")
	assert.NotContains(t, page.Text, "Copyright 2024")
}

func TestLocalFetcher_CharsetDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(200)
		// "Café Müller GmbH" in latin-1, padded past the empty-page floor.
		body := "<html><head><title>Caf\xe9 M\xfcller GmbH</title></head><body>" +
			"Caf\xe9 M\xfcller GmbH builds specialty roasting equipment for cafes across Europe." +
			"</body></html>"
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Café Müller GmbH", page.Title)
	assert.Contains(t, page.Text, "Café Müller GmbH builds")
}

func TestLocalFetcher_Cloudflare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(403)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestLocalFetcher_Captcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><body>Please complete the reCAPTCHA to continue</body></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestLocalFetcher_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLocalFetcher_HTTP404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(404)
		_, _ = w.Write([]byte(`<html><body>Not found page with lots of content here to exceed threshold</body></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	// 404 is not transient; no retries.
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocalFetcher_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(500)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><head><title>Acme</title></head><body>` +
			`Acme Corp builds industrial automation systems for manufacturers worldwide.</body></html>`))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Acme", page.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLocalFetcher_SizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("word ", 10000) + "</body></html>"))
	}))
	defer srv.Close()

	f := NewLocalFetcher(LocalOptions{MaxBody: 1024})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page.Text), 1024)
}

func TestLocalFetcher_SupportsSkipsLinkedIn(t *testing.T) {
	f := NewLocalFetcher(LocalOptions{})
	assert.False(t, f.Supports("https://www.linkedin.com/in/jane-doe"))
	assert.False(t, f.Supports("https://linkedin.com/company/acme"))
	assert.True(t, f.Supports("https://acme.com"))
	assert.True(t, f.Supports("https://notlinkedin.example.com"))
}

func TestLocalFetcher_Name(t *testing.T) {
	f := NewLocalFetcher(LocalOptions{})
	assert.Equal(t, "local_http", f.Name())
}

func TestDecodeCharset(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        string
	}{
		{"utf-8 passthrough", "Café", "text/html; charset=utf-8", "Café"},
		{"no charset passthrough", "Café", "text/html", "Café"},
		{"no content type", "Café", "", "Café"},
		{"latin-1 decode", "Caf\xe9", "text/html; charset=iso-8859-1", "Café"},
		{"unknown charset passthrough", "Café", "text/html; charset=klingon", "Café"},
		{"malformed content type", "Café", "text/;;;html", "Café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeCharset([]byte(tt.body), tt.contentType)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestStripHTML_Basic(t *testing.T) {
	input := `<html><head><style>body{color:red}</style></head>
<body><script>alert('hi')</script><h1>Hello</h1><p>World &amp; friends</p></body></html>`
	result := stripHTML(input)
	assert.Contains(t, result, "Hello")
	assert.Contains(t, result, "World & friends")
	assert.NotContains(t, result, "alert")
	assert.NotContains(t, result, "color:red")
	assert.NotContains(t, result, "<h1>")
}

func TestStripHTML_Entities(t *testing.T) {
	input := `&lt;tag&gt; &amp; &quot;quoted&quot; &#39;apos&#39; &nbsp;space`
	result := stripHTML(input)
	assert.Contains(t, result, `<tag>`)
	assert.Contains(t, result, `& "quoted"`)
	assert.Contains(t, result, `'apos'`)
}

func TestStripHTML_WhitespaceCollapse(t *testing.T) {
	input := "Hello     world\n\n\n\n\nfoo"
	result := stripHTML(input)
	assert.NotContains(t, result, "     ")
	assert.NotContains(t, result, "\n\n\n")
}

func TestExtractTitle(t *testing.T) {
	body := []byte(`<html><head><title>My Page Title</title></head><body></body></html>`)
	assert.Equal(t, "My Page Title", extractTitle(body))
}

func TestExtractTitle_Missing(t *testing.T) {
	body := []byte(`<html><body>no title here</body></html>`)
	assert.Equal(t, "", extractTitle(body))
}
