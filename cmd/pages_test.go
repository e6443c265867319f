package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPagesServer(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/me/accounts"):
			_, _ = io.WriteString(w, `{"data":[{"id":"1789","name":"Blog","category":"Media","tasks":["CREATE_CONTENT"],"access_token":"page-token"}]}`)
		case strings.HasSuffix(r.URL.Path, "/1789"):
			_, _ = io.WriteString(w, `{"id":"1789","name":"Blog","category":"Media","tasks":["CREATE_CONTENT","MODERATE"],"access_token":"page-token"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"unknown page","code":100}}`)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("GRAPH_BASE_URL", srv.URL)
	t.Setenv("META_ACCESS_TOKEN", "static-token")
}

func TestPagesList(t *testing.T) {
	newPagesServer(t)

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"pages"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "1789\tBlog\tcategory=Media\ttoken=true\ttasks=CREATE_CONTENT\n", out.String())
	assert.NotContains(t, out.String(), "page-token")
}

func TestPagesCheckReportsEachPage(t *testing.T) {
	newPagesServer(t)

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"pages", "1789", "404", "--json"})

	err := root.Execute()
	assert.ErrorContains(t, err, "resolve page token for 404")
	assert.JSONEq(t, `[{"id":"1789","name":"Blog","category":"Media","tasks":["CREATE_CONTENT","MODERATE"],"has_token":true}]`, out.String())
}

func TestPagesRequiresToken(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "")

	root := newRootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"pages"})

	assert.ErrorContains(t, root.Execute(), "missing META_ACCESS_TOKEN")
}
