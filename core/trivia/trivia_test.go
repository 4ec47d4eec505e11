package trivia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinfm/model"

	"github.com/stretchr/testify/assert"
)

var testTrack = &model.Track{ID: 1, Title: "Blue Monday", Artist: "New Order"}

func TestFetchTriviaSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"It was the best-selling 12-inch single of all time."}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	blurb := c.FetchTrivia(context.Background(), testTrack)
	assert.Equal(t, "It was the best-selling 12-inch single of all time.", blurb)
}

func TestFetchTriviaServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, Model: "test-model"})
	assert.Equal(t, Placeholder, c.FetchTrivia(context.Background(), testTrack))
}

func TestFetchTriviaGarbageResponseDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, Model: "test-model"})
	assert.Equal(t, Placeholder, c.FetchTrivia(context.Background(), testTrack))
}

func TestFetchTriviaEmptyChoicesDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBaseURL: srv.URL, Model: "test-model"})
	assert.Equal(t, Placeholder, c.FetchTrivia(context.Background(), testTrack))
}

func TestFetchTriviaUnconfigured(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, Placeholder, c.FetchTrivia(context.Background(), testTrack))
}
