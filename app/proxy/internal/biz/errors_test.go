package biz

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func TestIsNetworkError(t *testing.T) {
	dns := &url.Error{Op: "Post", URL: "https://identity.example", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "identity.example", IsNotFound: true},
	}}
	assert.True(t, IsNetworkError(fmt.Errorf("%w: %w", model.ErrUpstreamAuth, dns)))
	assert.True(t, IsNetworkError(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsNetworkError(context.DeadlineExceeded))

	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(fmt.Errorf("%w: catalog returned status 502", model.ErrUpstreamRequest)))
}

func TestUpstreamError(t *testing.T) {
	se := upstreamError(KindThumbnailFailed, fmt.Errorf("%w: missing", model.ErrAuthConfiguration))
	assert.Equal(t, KindAuthConfiguration, se.Reason)
	assert.Equal(t, int32(500), se.Code)

	se = upstreamError(KindSearchFailed, fmt.Errorf("wrap: %w", &net.DNSError{Err: "no such host", Name: "x"}))
	assert.Equal(t, KindSearchFailed, se.Reason)
	assert.Equal(t, NetworkHint, se.Metadata[MetadataDetails])
}
