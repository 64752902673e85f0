package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newTestClient(httpClient HTTPClient, waits *[]time.Duration) *Client {
	client := NewClient("test-agent")
	client.SetHTTPClient(httpClient)
	client.SetBackoff(100 * time.Millisecond)
	client.wait = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return client
}

func Test_Client_FetchDocument_ShouldBeSuccessful(t *testing.T) {
	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.String() == "https://jobs.example.com/list" &&
			req.Header.Get("User-Agent") == "test-agent" &&
			req.Header.Get("X-Token") == "abc"
	})).Return(htmlResponse(200, `<div class="job"><h2>Go developer</h2></div>`), nil).Once()

	var waits []time.Duration
	client := newTestClient(mockClient, &waits)

	doc, err := client.FetchDocument(context.Background(), "https://jobs.example.com/list",
		FetchOptions{Attempts: 3, Headers: map[string]string{"X-Token": "abc"}})
	require.NoError(t, err)
	assert.Equal(t, "Go developer", doc.Find(".job h2").Text())
	assert.Empty(t, waits)
	mockClient.AssertExpectations(t)
}

func Test_Client_FetchDocument_RetriesWithGrowingBackoff(t *testing.T) {
	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(htmlResponse(503, "busy"), nil).Once()
	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	mockClient.On("Do", mock.Anything).Return(htmlResponse(200, "<p>ok</p>"), nil).Once()

	var waits []time.Duration
	client := newTestClient(mockClient, &waits)

	doc, err := client.FetchDocument(context.Background(), "https://jobs.example.com", FetchOptions{Attempts: 3})
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Find("p").Text())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, waits)
	mockClient.AssertNumberOfCalls(t, "Do", 3)
}

func Test_Client_FetchDocument_AttemptsNeverExceedLimit(t *testing.T) {
	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(htmlResponse(500, "boom"), nil)

	var waits []time.Duration
	client := newTestClient(mockClient, &waits)

	_, err := client.FetchDocument(context.Background(), "https://jobs.example.com", FetchOptions{Attempts: 4})
	require.Error(t, err)

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 500, statusErr.StatusCode)
	mockClient.AssertNumberOfCalls(t, "Do", 4)
	require.Len(t, waits, 3)
	for i := 1; i < len(waits); i++ {
		assert.Greater(t, waits[i], waits[i-1])
	}
}

func Test_Client_FetchDocument_ZeroAttemptsMakesOneRequest(t *testing.T) {
	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(htmlResponse(404, ""), nil)

	var waits []time.Duration
	client := newTestClient(mockClient, &waits)

	_, err := client.FetchDocument(context.Background(), "https://jobs.example.com", FetchOptions{})
	assert.Error(t, err)
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}

func Test_Client_FetchDocument_TimesOutHungRequest(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("test-agent")
	client.SetBackoff(0)

	start := time.Now()
	_, err := client.FetchDocument(context.Background(), server.URL,
		FetchOptions{Attempts: 2, Timeout: 50 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func Test_Client_FetchDocument_StopsWhenContextCanceled(t *testing.T) {
	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.Anything).Return(htmlResponse(500, ""), nil)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient("test-agent")
	client.SetHTTPClient(mockClient)
	client.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}

	_, err := client.FetchDocument(ctx, "https://jobs.example.com", FetchOptions{Attempts: 5})
	assert.ErrorIs(t, err, context.Canceled)
	mockClient.AssertNumberOfCalls(t, "Do", 1)
}
