package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
)

func TestSelectSongReturnsCatalogSong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]any{
			"songs": []catalog.SongInfo{{ID: 7, Title: "X", ArtistOrContent: "Y", MediaID: "m-7"}},
		})
	}))
	defer server.Close()

	client := catalog.NewHTTPClient(server.URL, time.Second)
	song, err := client.SelectSong(context.Background(), []string{"rock"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, song.ID)
	assert.Equal(t, "X", song.Title)
}

func TestSelectSongEmptyResultIsNoSongAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"songs": []catalog.SongInfo{}})
	}))
	defer server.Close()

	client := catalog.NewHTTPClient(server.URL, time.Second)
	_, err := client.SelectSong(context.Background(), []string{"rock"}, nil)
	require.Error(t, err)
	assert.Equal(t, gameerr.NoSongAvailable, gameerr.KindOf(err))
}

func TestSelectSongRetriesOnceOnTransportFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"songs": []catalog.SongInfo{{ID: 1, Title: "Retry Song"}},
		})
	}))
	defer server.Close()

	client := catalog.NewHTTPClient(server.URL, time.Second)
	song, err := client.SelectSong(context.Background(), []string{"rock"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Retry Song", song.Title)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSelectSongUpstreamUnavailableAfterRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := catalog.NewHTTPClient(server.URL, time.Second)
	_, err := client.SelectSong(context.Background(), []string{"rock"}, nil)
	require.Error(t, err)
	assert.Equal(t, gameerr.UpstreamUnavailable, gameerr.KindOf(err))
}
