package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatsync/pkg/backend/types"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, configure func(*mux.Router)) (*httptest.Server, *HTTPClient) {
	t.Helper()
	router := mux.NewRouter()
	configure(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, "test-token", server.Client())
}

func TestFetchMessagesDecodesRows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/messages", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			assert.Equal(t, "c1", mux.Vars(req)["channelId"])
			json.NewEncoder(w).Encode([]types.MessageRow{
				{ID: "m1", ChannelID: "c1", SenderID: "u1", Type: "text", SenderName: "Alice", CreatedAt: now},
			})
		}).Methods(http.MethodGet)
	})

	rows, err := client.FetchMessages(context.Background(), "c1")

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0].ID)
	assert.Equal(t, "Alice", rows[0].SenderName)
	assert.True(t, now.Equal(rows[0].CreatedAt))
}

func TestFetchMessageNotFoundReturnsNil(t *testing.T) {
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/messages/{messageId}", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}).Methods(http.MethodGet)
	})

	row, err := client.FetchMessage(context.Background(), "c1", "gone")

	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFetchMessageServerErrorSurfaces(t *testing.T) {
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/messages/{messageId}", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}).Methods(http.MethodGet)
	})

	_, err := client.FetchMessage(context.Background(), "c1", "m1")

	require.Error(t, err)
	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.True(t, statusErr.IsTransient())
}

func TestFetchReactionsBatchesIds(t *testing.T) {
	var received map[string][]string
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/reactions/batch", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
			json.NewEncoder(w).Encode([]types.ReactionRow{
				{MessageID: "m1", UserID: "u1", ReactionType: "❤️"},
			})
		}).Methods(http.MethodPost)
	})

	rows, err := client.FetchReactions(context.Background(), []string{"m1", "m2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, received["messageIds"])
	require.Len(t, rows, 1)
}

func TestFetchReactionsSkipsNetworkForEmptyInput(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", nil)

	rows, err := client.FetchReactions(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestCreateMessageReturnsCanonicalRow(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/messages", func(w http.ResponseWriter, req *http.Request) {
			var got types.CreateMessageRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			json.NewEncoder(w).Encode(types.MessageRow{
				ID: "srv-1", ChannelID: got.ChannelID, SenderID: got.SenderID,
				Type: got.Type, Content: got.Content, CreatedAt: now,
			})
		}).Methods(http.MethodPost)
	})

	content := "hello"
	row, err := client.CreateMessage(context.Background(), types.CreateMessageRequest{
		ChannelID: "c1", SenderID: "self", Type: "text", Content: &content,
	})

	require.NoError(t, err)
	assert.Equal(t, "srv-1", row.ID)
	assert.True(t, now.Equal(row.CreatedAt))
}

func TestCreateMessageRejectsMissingId(t *testing.T) {
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/messages", func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(types.MessageRow{})
		}).Methods(http.MethodPost)
	})

	_, err := client.CreateMessage(context.Background(), types.CreateMessageRequest{ChannelID: "c1"})
	assert.Error(t, err)
}

func TestReactionWrites(t *testing.T) {
	var adds, removes int
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/reactions", func(w http.ResponseWriter, req *http.Request) {
			adds++
			w.WriteHeader(http.StatusCreated)
		}).Methods(http.MethodPost)
		r.HandleFunc("/reactions/delete", func(w http.ResponseWriter, req *http.Request) {
			removes++
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodPost)
	})

	require.NoError(t, client.AddReaction(context.Background(), "c1", "m1", "self", "❤️"))
	require.NoError(t, client.RemoveReaction(context.Background(), "c1", "m1", "self", "❤️"))

	assert.Equal(t, 1, adds)
	assert.Equal(t, 1, removes)
}

func TestSoftDeleteMessagePostsActor(t *testing.T) {
	var payload map[string]interface{}
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/messages/{messageId}/delete", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodPost)
	})

	require.NoError(t, client.SoftDeleteMessage(context.Background(), "c1", "m1", "self"))
	assert.Equal(t, "self", payload["actorId"])
}

func TestTypingLifecycle(t *testing.T) {
	var inserted, deleted bool
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/typing", func(w http.ResponseWriter, req *http.Request) {
			inserted = true
			w.WriteHeader(http.StatusCreated)
		}).Methods(http.MethodPost)
		r.HandleFunc("/channels/{channelId}/typing/{userId}", func(w http.ResponseWriter, req *http.Request) {
			deleted = mux.Vars(req)["userId"] == "self"
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodDelete)
	})

	require.NoError(t, client.InsertTyping(context.Background(), "c1", "self"))
	require.NoError(t, client.DeleteTyping(context.Background(), "c1", "self"))

	assert.True(t, inserted)
	assert.True(t, deleted)
}

func TestUpdateLastReadPutsTimestamp(t *testing.T) {
	var payload map[string]string
	_, client := newTestServer(t, func(r *mux.Router) {
		r.HandleFunc("/channels/{channelId}/members/{userId}/last-read", func(w http.ResponseWriter, req *http.Request) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodPut)
	})

	at := time.Now().UTC()
	require.NoError(t, client.UpdateLastRead(context.Background(), "c1", "self", at))
	assert.NotEmpty(t, payload["lastReadAt"])
}

func TestStatusErrorTransience(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		err := &StatusError{StatusCode: tt.code, Endpoint: "/x"}
		assert.Equal(t, tt.transient, err.IsTransient(), "status %d", tt.code)
	}
}
