package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirror/internal/models"
	"mirror/internal/services"
	"mirror/internal/utils"
)

type stubPostService struct {
	shared     models.NewPost
	media      []byte
	shareErr   error
	commented  models.Comment
	commentErr error
}

func (s *stubPostService) SharePost(_ context.Context, post models.NewPost, media io.Reader) (string, error) {
	s.shared = post
	if media != nil {
		s.media, _ = io.ReadAll(media)
	}
	if s.shareErr != nil {
		return "", s.shareErr
	}
	return "abc.png", nil
}

func (s *stubPostService) LikePost(_ context.Context, _, mediaPath string) (*models.LikeResult, error) {
	return &models.LikeResult{MediaPath: mediaPath, Liked: true, LikeCount: 1}, nil
}

func (s *stubPostService) AddComment(_ context.Context, _ string, comment models.Comment) error {
	s.commented = comment
	return s.commentErr
}

func (s *stubPostService) OpenFile(string) (*os.File, error) {
	return nil, services.ErrNotFound
}

func multipartShare(t *testing.T, fields map[string]string, media []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if media != nil {
		fw, err := mw.CreateFormFile("media", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(media)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/share", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(utils.WithClaims(req.Context(), &utils.Claims{Username: "alice"}))
}

func TestShare(t *testing.T) {
	svc := &stubPostService{}
	h := NewPostHandler(svc)

	rec := httptest.NewRecorder()
	h.Share(rec, multipartShare(t, map[string]string{"text": "hi", "type": "image"}, []byte("data")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Post shared successfully","mediaPath":"abc.png"}`, rec.Body.String())
	assert.Equal(t, models.NewPost{Username: "alice", Text: "hi", Type: "image", Filename: "photo.png"}, svc.shared)
	assert.Equal(t, []byte("data"), svc.media)
}

func TestShareIdentityMismatch(t *testing.T) {
	h := NewPostHandler(&stubPostService{})

	rec := httptest.NewRecorder()
	h.Share(rec, multipartShare(t, map[string]string{"username": "bob", "type": "image"}, []byte("data")))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShareErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{services.ErrBadRequest, http.StatusBadRequest, `{"error":"bad request"}`},
		{services.ErrNotFound, http.StatusNotFound, `{"error":"not found"}`},
		{errors.New("disk on fire"), http.StatusInternalServerError, `{"error":"internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewPostHandler(&stubPostService{shareErr: tt.err})
			rec := httptest.NewRecorder()
			h.Share(rec, multipartShare(t, map[string]string{"type": "image"}, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestAddCommentAuthorMustMatchSession(t *testing.T) {
	svc := &stubPostService{}
	h := NewPostHandler(svc)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/add-comment", bytes.NewBufferString(body))
		req = req.WithContext(utils.WithClaims(req.Context(), &utils.Claims{Username: "alice"}))
		rec := httptest.NewRecorder()
		h.AddComment(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, send(`{"mediaPath":"a.png","comment":["bob","hi"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"mediaPath":"a.png","comment":[]}`).Code)

	rec := send(`{"mediaPath":"a.png","comment":["alice","hi"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Comment{"alice", "hi"}, svc.commented)
}

func TestAddCommentInternalFailure(t *testing.T) {
	h := NewPostHandler(&stubPostService{commentErr: fmt.Errorf("comment on a.png: %w", services.ErrInternal)})

	req := httptest.NewRequest(http.MethodPost, "/add-comment", bytes.NewBufferString(`{"mediaPath":"a.png","comment":["alice","hi"]}`))
	req = req.WithContext(utils.WithClaims(req.Context(), &utils.Claims{Username: "alice"}))
	rec := httptest.NewRecorder()
	h.AddComment(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"comment on a.png: internal error"}`, rec.Body.String())
}
