package upload

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

func newTestServer(t *testing.T) (*Server, *store.KV, string) {
	t.Helper()
	kv, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	store.Save(kv, store.KeyUsers, []domain.User{
		{ID: "ua", Name: "Ama"},
	})

	dir := t.TempDir()
	return NewServer(kv, dir, zap.NewNop()), kv, dir
}

func multipartBody(t *testing.T, userID, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("user_id", userID))
	part, err := w.CreateFormFile("profile_picture", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandleAvatar(t *testing.T) {
	t.Run("accepts png and updates the user", func(t *testing.T) {
		srv, kv, dir := newTestServer(t)
		body, ctype := multipartBody(t, "ua", "me.png", []byte("fakepng"))

		req, _ := http.NewRequest(http.MethodPost, "/upload/avatar", body)
		req.Header.Set("Content-Type", ctype)
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Avatar string `json:"avatar"`
		}
		raw, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.True(t, filepath.Ext(out.Avatar) == ".png")

		users := store.Load(kv, store.KeyUsers, []domain.User{})
		require.Len(t, users, 1)
		assert.Equal(t, out.Avatar, users[0].AvatarImage)

		saved, err := os.ReadFile(filepath.Join(dir, filepath.Base(out.Avatar)))
		require.NoError(t, err)
		assert.Equal(t, []byte("fakepng"), saved)
	})

	t.Run("rejects disallowed extension", func(t *testing.T) {
		srv, kv, _ := newTestServer(t)
		body, ctype := multipartBody(t, "ua", "evil.php", []byte("<?php"))

		req, _ := http.NewRequest(http.MethodPost, "/upload/avatar", body)
		req.Header.Set("Content-Type", ctype)
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		users := store.Load(kv, store.KeyUsers, []domain.User{})
		assert.Empty(t, users[0].AvatarImage)
	})

	t.Run("missing user id", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		body, ctype := multipartBody(t, "", "me.jpg", []byte("x"))

		req, _ := http.NewRequest(http.MethodPost, "/upload/avatar", body)
		req.Header.Set("Content-Type", ctype)
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		body, ctype := multipartBody(t, "ux", "me.jpg", []byte("x"))

		req, _ := http.NewRequest(http.MethodPost, "/upload/avatar", body)
		req.Header.Set("Content-Type", ctype)
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing file", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("user_id", "ua"))
		require.NoError(t, w.Close())

		req, _ := http.NewRequest(http.MethodPost, "/upload/avatar", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		resp, err := srv.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
