package util

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "https", raw: "https://example.com/page", want: "https://example.com/page"},
		{name: "http with query", raw: "http://example.com/a?b=c#d", want: "http://example.com/a?b=c#d"},
		{name: "fragment", raw: "https://example.com/page#section", want: "https://example.com/page#section"},
		{name: "query and fragment", raw: "https://example.com/a?q=1#top", want: "https://example.com/a?q=1#top"},
		{name: "surrounding whitespace", raw: "  https://example.com  ", want: "https://example.com"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no scheme", raw: "example.com/page", wantErr: true},
		{name: "relative path", raw: "/page", wantErr: true},
		{name: "unsupported scheme", raw: "javascript:alert(1)", wantErr: true},
		{name: "missing host", raw: "https://", wantErr: true},
		{name: "opaque", raw: "https:example.com", wantErr: true},
		{name: "garbage", raw: "::not a url::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateID(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		require.NotEmpty(t, id)
		assert.Regexp(t, urlSafe, id)
		assert.LessOrEqual(t, len(id), 7)

		decoded, err := base64.RawURLEncoding.DecodeString(id)
		require.NoError(t, err)
		n, err := strconv.Atoi(string(decoded))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 65535)
	}
}

func TestGenerateID_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan string, 800)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ids <- GenerateID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	count := 0
	for id := range ids {
		assert.Regexp(t, urlSafe, id)
		count++
	}
	assert.Equal(t, 800, count)
}
