package thingspeak

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	t.Run("positional fields", func(t *testing.T) {
		var gotQuery map[string][]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.Write([]byte("42"))
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL, APIKey: "WRITEKEY"})
		require.NoError(t, err)
		err = c.Update(context.Background(), []string{"22.5", "61.3", "19.0", "55.5", "NaN", "NaN", "17.8", "70.2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"22.5"}, gotQuery["field1"])
		assert.Equal(t, []string{"61.3"}, gotQuery["field2"])
		assert.Equal(t, []string{"NaN"}, gotQuery["field5"])
		assert.Equal(t, []string{"70.2"}, gotQuery["field8"])
		assert.Equal(t, []string{"WRITEKEY"}, gotQuery["api_key"])
	})
	t.Run("identical input produces identical request", func(t *testing.T) {
		var urls []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			urls = append(urls, r.URL.String())
			w.Write([]byte("1"))
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		values := []string{"22.5", "61.3"}
		require.NoError(t, c.Update(context.Background(), values))
		require.NoError(t, c.Update(context.Background(), values))
		require.Len(t, urls, 2)
		assert.Equal(t, urls[0], urls[1])
	})
	t.Run("remote rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		err = c.Update(context.Background(), []string{"22.5"})
		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindRejected, derr.Kind)
	})
	t.Run("zero entry is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("0"))
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		err = c.Update(context.Background(), []string{"22.5"})
		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindRejected, derr.Kind)
	})
	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not a number</html>"))
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		err = c.Update(context.Background(), []string{"22.5"})
		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindMalformedResponse, derr.Kind)
	})
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		c, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		err = c.Update(context.Background(), []string{"22.5"})
		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindUnreachable, derr.Kind)
	})
}

func TestNotify(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("7"))
	}))
	defer srv.Close()
	c, err := New(Config{BaseURL: srv.URL, APIKey: "WRITEKEY"})
	require.NoError(t, err)
	require.NoError(t, c.Notify(context.Background(), "field3", "1"))
	assert.Equal(t, []string{"1"}, gotQuery["field3"])
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestBaseURLWithKey(t *testing.T) {
	// the original deployments bake the write key into the base URL
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte("3"))
	}))
	defer srv.Close()
	c, err := New(Config{BaseURL: srv.URL + "/update?key=ABC"})
	require.NoError(t, err)
	require.NoError(t, c.Update(context.Background(), []string{"22.5"}))
	assert.Equal(t, []string{"ABC"}, gotQuery["key"])
	assert.Equal(t, []string{"22.5"}, gotQuery["field1"])
}
