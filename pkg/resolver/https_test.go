package resolver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

func TestNewHTTPS(t *testing.T) {
	t.Run("bare address gets default path", func(t *testing.T) {
		r := NewHTTPS("1.1.1.1", 5*time.Second, "", false)
		require.NotNil(t, r)

		h := r.(*HTTPS)
		assert.Equal(t, "https://1.1.1.1/dns-query", h.url)
	})

	t.Run("full url kept as-is", func(t *testing.T) {
		r := NewHTTPS("https://dns.example/custom", 5*time.Second, "", false)
		h := r.(*HTTPS)
		assert.Equal(t, "https://dns.example/custom", h.url)
	})
}

// dohHandler answers A and AAAA queries for any name with fixed records.
func dohHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var parser dnsmessage.Parser
		header, err := parser.Start(body)
		require.NoError(t, err)
		q, err := parser.Question()
		require.NoError(t, err)

		builder := dnsmessage.NewBuilder(nil, dnsmessage.Header{
			ID:       header.ID,
			Response: true,
			RCode:    dnsmessage.RCodeSuccess,
		})
		builder.EnableCompression()
		require.NoError(t, builder.StartQuestions())
		require.NoError(t, builder.Question(q))
		require.NoError(t, builder.StartAnswers())
		rh := dnsmessage.ResourceHeader{
			Name:  q.Name,
			Type:  q.Type,
			Class: dnsmessage.ClassINET,
			TTL:   60,
		}
		switch q.Type {
		case dnsmessage.TypeA:
			require.NoError(t, builder.AResource(rh, dnsmessage.AResource{
				A: netip.MustParseAddr("192.0.2.5").As4(),
			}))
		case dnsmessage.TypeAAAA:
			require.NoError(t, builder.AAAAResource(rh, dnsmessage.AAAAResource{
				AAAA: netip.MustParseAddr("2001:db8::5").As16(),
			}))
		}
		msg, err := builder.Finish()
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/dns-message")
		_, _ = w.Write(msg)
	}
}

func TestHTTPSResolveLocalServer(t *testing.T) {
	srv := httptest.NewTLSServer(dohHandler(t))
	defer srv.Close()

	r := NewHTTPS(srv.URL, 2*time.Second, "", true)

	addrs, err := r.Resolve(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("192.0.2.5"),
		netip.MustParseAddr("2001:db8::5"),
	}, addrs)
}

func TestHTTPSResolveBadStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewHTTPS(srv.URL, 2*time.Second, "", true)

	_, err := r.Resolve(context.Background(), "example.org")
	assert.Error(t, err)
}
