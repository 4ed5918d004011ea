package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNames(t *testing.T) {
	assert.Contains(t, FileNames(), "intake.js")
}

func TestHandlerServesScript(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/assets/", Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/assets/intake.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "remove_media")
}
