package openaiapi

import (
	"errors"
	"fmt"
	"net"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestErrorDetail(t *testing.T) {
	require.Equal(t, "Invalid file format.", ErrorDetail(&openai.APIError{Message: " Invalid file format. ", HTTPStatusCode: 400}))
	require.Equal(t, "HTTP 502", ErrorDetail(&openai.APIError{HTTPStatusCode: 502}))
	require.Equal(t, "HTTP 500", ErrorDetail(fmt.Errorf("wrapped: %w", &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("bad body")})))
	require.Equal(t, "boom", ErrorDetail(errors.New("boom")))
}

func TestIsNetworkError(t *testing.T) {
	require.True(t, IsNetworkError(fmt.Errorf("post: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")})))
	require.True(t, IsNetworkError(&net.DNSError{Name: "api.openai.com", IsNotFound: true}))
	require.False(t, IsNetworkError(errors.New("HTTP 500")))
}
