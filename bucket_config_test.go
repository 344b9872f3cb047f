package s3lite

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketVersioningRoundTrip(t *testing.T) {
	var stored versioningConfig
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("versioning"))
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, xml.Unmarshal(body, &stored))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			xml.NewEncoder(w).Encode(stored)
		}
	}))

	ctx := context.Background()
	require.NoError(t, c.SetBucketVersioning(ctx, "test-42", VersioningConfig{Status: "Enabled"}))

	got, err := c.GetBucketVersioning(ctx, "test-42")
	require.NoError(t, err)
	require.Equal(t, "Enabled", got.Status)
	require.True(t, got.Enabled())
}

func xmlError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	xml.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: code})
}

func TestGetBucketLifecycleMissingCollapsesToEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlError(w, http.StatusNotFound, "NoSuchLifecycleConfiguration")
	}))

	rules, err := c.GetBucketLifecycle(context.Background(), "test-42")
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestDeleteBucketEncryptionMissingCollapsesToSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlError(w, http.StatusNotFound, "ServerSideEncryptionConfigurationNotFoundError")
	}))
	require.NoError(t, c.DeleteBucketEncryption(context.Background(), "test-42"))
}

func TestDeleteBucketReplicationMissingCollapsesToSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlError(w, http.StatusNotFound, "ReplicationConfigurationNotFoundError")
	}))
	require.NoError(t, c.DeleteBucketReplication(context.Background(), "test-42"))
}

func TestGetObjectRetentionMissingCollapsesToEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlError(w, http.StatusNotFound, "NoSuchObjectLockConfiguration")
	}))

	retention, err := c.GetObjectRetention(context.Background(), "test-42", "obj", "")
	require.NoError(t, err)
	require.Empty(t, retention.Mode)
	require.True(t, retention.RetainUntilDate.IsZero())
}

func TestBucketTagsRoundTrip(t *testing.T) {
	var stored []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("tagging"))
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			w.Write(stored)
		case http.MethodDelete:
			stored = nil
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	ctx := context.Background()
	tags := map[string]string{"env": "prod", "team": "storage"}
	require.NoError(t, c.SetBucketTags(ctx, "test-42", tags))

	got, err := c.GetBucketTags(ctx, "test-42")
	require.NoError(t, err)
	require.Equal(t, tags, got)

	require.NoError(t, c.DeleteBucketTags(ctx, "test-42"))
}

func TestGetBucketPolicyMissingCollapsesToEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlError(w, http.StatusNotFound, "NoSuchBucketPolicy")
	}))

	policy, err := c.GetBucketPolicy(context.Background(), "test-42")
	require.NoError(t, err)
	require.Empty(t, policy)
}

func TestObjectLockConfigRoundTrip(t *testing.T) {
	var stored []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("object-lock"))
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			w.Write(stored)
		}
	}))

	ctx := context.Background()
	require.NoError(t, c.SetObjectLockConfig(ctx, "test-42", ObjectLockConfig{
		Enabled: true, Mode: "GOVERNANCE", Days: 30,
	}))

	got, err := c.GetObjectLockConfig(ctx, "test-42")
	require.NoError(t, err)
	require.True(t, got.Enabled)
	require.Equal(t, "GOVERNANCE", got.Mode)
	require.Equal(t, 30, got.Days)
}
